package provider

// Credentials holds one provider's client id and secret. A provider with
// empty credentials is left out of the registry at startup.
type Credentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Configured reports whether both credential parts are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config aggregates the credentials of every supported provider.
type Config struct {
	Discord   Credentials `envPrefix:"DISCORD_"`
	GitHub    Credentials `envPrefix:"GITHUB_"`
	Members   Credentials `envPrefix:"GOOGLE_"`
	WilmaPlus Credentials `envPrefix:"WILMAPLUS_"`
	Twitter   Credentials `envPrefix:"TWITTER_"`

	// Accounts outside this Google Workspace domain are rejected.
	MembersDomain string `env:"GOOGLE_HOSTED_DOMAIN" envDefault:"testausserveri.fi"`
}
