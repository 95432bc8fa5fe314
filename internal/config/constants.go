package config

const (
	// DefaultDatabasePath is the default path for the application database
	DefaultDatabasePath = "./markit.db"

	// DefaultIssuer is the "iss" claim of ID tokens minted by the local token authority
	DefaultIssuer = "markit-identity"
)
