package config

// Config represents the configs model.
type Config struct {
	// Application is the model of application configs.
	Application struct {
		// Name of the application.
		Name string `yaml:"name" mapstructure:"name"`
		// BaseURL of the application.
		// It can be http://localhost:8080 during development and https://domain.com in production.
		BaseURL string `yaml:"base_url" mapstructure:"base_url"`
		// PProf is a flag to enable/disable profiling.
		PProf bool `yaml:"pprof" mapstructure:"pprof"`
	} `yaml:"application" mapstructure:"application"`

	Database struct {
		Addr     string `yaml:"addr" mapstructure:"addr"`
		Username string `yaml:"username" mapstructure:"username"`
		Password string `yaml:"password" mapstructure:"password"`
		Database string `yaml:"database" mapstructure:"database"`
	} `yaml:"database" mapstructure:"database"`

	// HTTPServer is the model of the HTTP Server configs.
	HTTPServer struct {
		// Addr is the address of the HTTP server.
		Addr string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"http_server" mapstructure:"http_server"`

	// Logger is the model of the application logger configs.
	Logger struct {
		// Level of the logger.
		Level string `yaml:"level" mapstructure:"level"`
		// Pretty is a flag that dictates whether the log output should be pretty (human-readable).
		Pretty bool `yaml:"pretty" mapstructure:"pretty"`
	} `yaml:"logger" mapstructure:"logger"`

	// Session holds the application session and sign-up related configs.
	Session struct {
		// Secret signs the session credential and all correlation cookies.
		Secret string `yaml:"secret" mapstructure:"secret"`
		// CookieName is the name of the application session cookie.
		CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`
		// UserCollection is the name of the host's user collection, embedded in the session credential.
		UserCollection string `yaml:"user_collection" mapstructure:"user_collection"`
		// AllowSignUp dictates whether a login with an unknown email creates a new user.
		AllowSignUp bool `yaml:"allow_sign_up" mapstructure:"allow_sign_up"`
		// SuccessPath is the path the browser lands on after a successful login.
		SuccessPath string `yaml:"success_path" mapstructure:"success_path"`
		// FailurePath is the path the browser lands on after a failed login.
		FailurePath string `yaml:"failure_path" mapstructure:"failure_path"`
	} `yaml:"session" mapstructure:"session"`

	// Google OAuth related configs.
	Google struct {
		ClientID     string `yaml:"client_id" mapstructure:"client_id"`
		ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	} `yaml:"google" mapstructure:"google"`

	// Github OAuth related configs.
	Github struct {
		ClientID     string `yaml:"client_id" mapstructure:"client_id"`
		ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	} `yaml:"github" mapstructure:"github"`

	// Passkey holds the WebAuthn relying party configs.
	Passkey struct {
		RPID          string   `yaml:"rp_id" mapstructure:"rp_id"`
		RPDisplayName string   `yaml:"rp_display_name" mapstructure:"rp_display_name"`
		RPOrigins     []string `yaml:"rp_origins" mapstructure:"rp_origins"`
	} `yaml:"passkey" mapstructure:"passkey"`
}

// Load loads and returns the config value.
func Load() Config {
	return loadWithViper()
}

// LoadMock provides a mock instance of the config for testing purposes.
func LoadMock() Config {
	cfg := Config{}

	cfg.Application.Name = "example-application"
	cfg.Application.BaseURL = "http://localhost:8080"
	cfg.HTTPServer.Addr = "localhost:8080"

	cfg.Logger.Level = "debug"
	cfg.Logger.Pretty = true

	cfg.Session.Secret = "example-secret"
	cfg.Session.CookieName = "signon-token"
	cfg.Session.UserCollection = "users"
	cfg.Session.SuccessPath = "/admin"
	cfg.Session.FailurePath = "/admin/login"

	return cfg
}
