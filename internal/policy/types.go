package policy

type Policy struct {
	PolicyID      string          `yaml:"policy_id"`
	PolicyVersion string          `yaml:"policy_version"`
	Gates         Gates           `yaml:"gates"`
	Thresholds    Thresholds      `yaml:"thresholds"`
	Trust         TrustConfig     `yaml:"trust"`
	Penalty       PenaltyConfig   `yaml:"penalty"`
	Confidence    ConfidenceParam `yaml:"confidence"`
	Citations     LimitConfig     `yaml:"citations"`
	Conditions    LimitConfig     `yaml:"conditions"`
}

type Gates struct {
	StrictHITL                  bool    `yaml:"strict_hitl"`
	AllowConditionSubstitution  bool    `yaml:"allow_condition_substitution"`
	SoftGateConfidenceThreshold float64 `yaml:"soft_gate_confidence_threshold"`
}

// Thresholds are compared with >= against the penalty-adjusted scores.
type Thresholds struct {
	RequiresRegulation    float64 `yaml:"requires_regulation"`
	AutoApprove           float64 `yaml:"auto_approve"`
	ApproveWithConditions float64 `yaml:"approve_with_conditions"`
}

type TrustConfig struct {
	Doc                float64  `yaml:"doc"`
	Gov                float64  `yaml:"gov"`
	Edu                float64  `yaml:"edu"`
	News               float64  `yaml:"news"`
	Web                float64  `yaml:"web"`
	NoEvidenceStrength float64  `yaml:"no_evidence_strength"`
	CorroborationStep  float64  `yaml:"corroboration_step"`
	CorroborationCap   float64  `yaml:"corroboration_cap"`
	RegulatorHosts     []string `yaml:"regulator_hosts"`
	NewsTokens         []string `yaml:"news_tokens"`
}

type PenaltyConfig struct {
	Categories              map[string]float64 `yaml:"categories"`
	DefaultCategorySeverity float64            `yaml:"default_category_severity"`
	NonBlockingMultiplier   float64            `yaml:"non_blocking_multiplier"`
	Normalizer              float64            `yaml:"normalizer"`
	RejectNudgeFloor        float64            `yaml:"reject_nudge_floor"`
	RejectNudgeRate         float64            `yaml:"reject_nudge_rate"`
}

type ConfidenceParam struct {
	Steepness float64 `yaml:"steepness"`
}

type LimitConfig struct {
	Max int `yaml:"max"`
}
