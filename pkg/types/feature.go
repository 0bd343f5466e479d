package types

type FeatureRecord struct {
	Schema      string           `json:"schema"`
	FeatureID   string           `json:"feature_id"`
	SessionID   string           `json:"session_id"`
	CreatedAt   string           `json:"created_at"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Findings    AnalysisFindings `json:"findings"`
}
