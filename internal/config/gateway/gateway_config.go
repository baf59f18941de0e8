package gateway

// GatewayConfig holds the WebSocket listener settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`

	MaxMessageBytes     int64 `json:"maxMessageBytes" yaml:"maxMessageBytes"`
	SendBuffer          int   `json:"sendBuffer" yaml:"sendBuffer"`
	PingIntervalSeconds int   `json:"pingIntervalSeconds" yaml:"pingIntervalSeconds"`

	// RateLimit is the sustained inbound messages per second allowed per
	// connection; 0 disables limiting.
	RateLimit float64 `json:"rateLimit" yaml:"rateLimit"`
	RateBurst int     `json:"rateBurst" yaml:"rateBurst"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:                "127.0.0.1",
		Port:                18790,
		Path:                "/ws",
		MaxMessageBytes:     1 << 20,
		SendBuffer:          256,
		PingIntervalSeconds: 30,
		RateLimit:           50,
		RateBurst:           100,
	}
}
