package insight

// Application-wide defaults shared by config, db and the CLI.
const (
	DefaultAppName    = "insight"
	DefaultConfigPath = "$HOME/.config/insight"

	DefaultDatabaseDriver = "libsql"
	DefaultDatabasePath   = "data/order_database.db"
	DefaultStatePath      = ".insight/state.db"

	DefaultOutputDir = "output"
	DefaultLogFile   = "logs/app.log"

	DefaultLLMProvider = "openai"
	DefaultLLMModel    = "Qwen/Qwen2.5-Coder-32B-Instruct"

	DefaultServerAddr = ":8080"
)
