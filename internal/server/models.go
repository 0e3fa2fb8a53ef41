package server

// HTTPError is the JSON shape of every error response.
type HTTPError struct {
	Error string `json:"error"`
}

type BookingRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CompanyURL    string `json:"companyUrl"`
	PreferredDate string `json:"preferredDate"`
	Notes         string `json:"notes"`
}

type ScorecardRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	CompanyURL string `json:"companyUrl"`
	ARRRange   string `json:"arrRange"`
	SaaSMotion string `json:"saasMotion"`
	Bottleneck string `json:"bottleneck"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type PaymentIntentRequest struct {
	Plan string `json:"plan"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// WebhookPayload is the database-change envelope posted by the row-insert webhook.
type WebhookPayload struct {
	Type   string                 `json:"type"`
	Table  string                 `json:"table"`
	Record map[string]interface{} `json:"record"`
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
