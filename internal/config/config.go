package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWT      JWT      `envPrefix:"JWT_"`
	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
	Referral Referral `envPrefix:"REFERRAL_"`
}

type Razorpay struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID         string `env:"KEY_ID"`
	KeySecret     string `env:"KEY_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type JWT struct {
	Secret string `env:"SECRET"`
}

// Referral holds the reward policy. Amounts are in paise.
type Referral struct {
	MinPurchaseAmount int64   `env:"MIN_PURCHASE_AMOUNT" envDefault:"100000"`
	RewardRate        float64 `env:"REWARD_RATE" envDefault:"0.10"`
	RewardCap         int64   `env:"REWARD_CAP" envDefault:"50000"`
	CodeTTLDays       int     `env:"CODE_TTL_DAYS" envDefault:"90"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
