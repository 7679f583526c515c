package health

// Production check identifiers. The ids are stable API surface: they appear
// in reports, snapshots derive from them, and operators alert on them.
const (
	CheckSuccessRate     = "DC_HEALTH_01"
	CheckRecoveryCycles  = "DC_HEALTH_02"
	CheckBrandCompliance = "DC_HEALTH_03"
)

// NoData marks a check window with no observations. A quiet workspace is
// idle, not unhealthy, so no-data checks pass.
const NoData float64 = -1

// CheckResult is the outcome of one production health check.
type CheckResult struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Passed            bool    `json:"passed"`
	Observed          float64 `json:"observed"`
	Threshold         float64 `json:"threshold"`
	Window            string  `json:"window,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
}
