package daraja

// =====================================================
// DARAJA PROXY CONFIGURATION
// =====================================================

type Config struct {
	BaseURL     string // gateway proxy base URL
	ShortCode   string // business paybill / till number
	Passkey     string // STK push passkey
	CallbackURL string // where the provider posts confirmations
}

// NewConfig creates Daraja proxy configuration
func NewConfig(baseURL, shortCode, passkey, callbackURL string) *Config {
	return &Config{
		BaseURL:     baseURL,
		ShortCode:   shortCode,
		Passkey:     passkey,
		CallbackURL: callbackURL,
	}
}

// GetPushURL returns the STK push endpoint
func (c *Config) GetPushURL() string {
	return c.BaseURL + "/api/v1/stk-push"
}

// GetQueryURL returns the active status query endpoint
func (c *Config) GetQueryURL() string {
	return c.BaseURL + "/api/v1/query"
}

// =====================================================
// DARAJA CONSTANTS
// =====================================================

const (
	// ResponseCode on push initiation
	ResponseCodeAccepted = "0"

	// ResultCode on query / callback
	ResultCodeSuccess = "0"

	// errorCode values on query that mean "not yet processed"
	ErrorCodeProcessing = "500.001.1001"
)
