package types

// Telemetry metric names for CloudWatch and Prometheus.
// All components MUST use these constants.
const (
	// Metric Names
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"
	MetricSignupOutcome   = "SignupOutcome"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimOutcome  = "Outcome"

	// Metric Namespace
	MetricNamespace = "SubscribeAPI"
)

// SignupOutcome labels the terminal stage a signup request reached.
type SignupOutcome string

const (
	OutcomeSuccess          SignupOutcome = "success"
	OutcomeMethodNotAllowed SignupOutcome = "method_not_allowed"
	OutcomeSaleNotOpen      SignupOutcome = "sale_not_open"
	OutcomeMissingFields    SignupOutcome = "missing_fields"
	OutcomeMisconfigured    SignupOutcome = "misconfigured"
	OutcomeInvalidPlan      SignupOutcome = "invalid_plan"
	OutcomeCardError        SignupOutcome = "card_error"
	OutcomeAPIError         SignupOutcome = "api_error"
)
