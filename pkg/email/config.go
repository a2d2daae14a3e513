package email

// Config holds email service configuration.
// The Postmark tokens are only required when Provider is "postmark";
// the "dev" provider writes messages to DevOutputDir instead.
type Config struct {
	Provider             string `env:"EMAIL_PROVIDER" envDefault:"dev"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkBaseURL      string `env:"POSTMARK_BASE_URL"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@wavespoole.com"`
	SenderName           string `env:"SENDER_NAME" envDefault:"Waves Poole"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

const (
	ProviderPostmark = "postmark"
	ProviderDev      = "dev"
)
