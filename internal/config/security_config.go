package config

// SecurityConfig holds rate limiting and CORS settings
type SecurityConfig struct {
	// Requests per second and burst per client IP on public endpoints
	IPRateLimit float64
	IPRateBurst int

	CORSAllowedOrigins []string
}

// LoadSecurityConfig reads security settings from the environment
func LoadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IPRateLimit:        getEnvFloat("RATE_LIMIT_IP", 5),
		IPRateBurst:        getEnvInt("RATE_LIMIT_IP_BURST", 20),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}
