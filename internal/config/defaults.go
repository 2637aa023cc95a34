package config

const (
	defaultConfigPath        = "~/.config/crossref/config.toml"
	defaultStateDir          = "~/.local/share/crossref"
	defaultLogDir            = "~/.local/share/crossref/logs"
	defaultNebulaAuthURL     = "https://api.watchnebula.com/api/v1/authorization/"
	defaultNebulaContentURL  = "https://content.api.nebula.app"
	defaultNebulaLinkBaseURL = "https://nebula.tv"
	defaultCredentialFile    = "~/.config/crossref/nebula_credential"
	defaultRequestTimeout    = 10
	defaultRequestsPerSecond = 5
	defaultBurst             = 5
	defaultMaxPageSize       = 100
	defaultCreatorsPath      = "~/.config/crossref/creators.json"
	defaultChannelFetchCount = 50
	defaultSearchFetchCount  = 50
	defaultUploadsFetchCount = 50
	defaultMinConfidence     = 0.5
	defaultBatchConcurrency  = 4
	defaultAPIBind           = "127.0.0.1:7489"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultYouTubeTimeout    = 10
	nebulaCredentialEnv      = "NEBULA_API_TOKEN"
	youtubeAPIKeyEnv         = "YOUTUBE_API_KEY"
	apiTokenEnv              = "CROSSREF_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Nebula: Nebula{
			AuthURL:           defaultNebulaAuthURL,
			ContentURL:        defaultNebulaContentURL,
			LinkBaseURL:       defaultNebulaLinkBaseURL,
			CredentialFile:    defaultCredentialFile,
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
			Burst:             defaultBurst,
			MaxPageSize:       defaultMaxPageSize,
		},
		YouTube: YouTube{
			RequestTimeout: defaultYouTubeTimeout,
		},
		Creators: Creators{
			Path: defaultCreatorsPath,
		},
		Resolution: Resolution{
			ChannelFetchCount: defaultChannelFetchCount,
			SearchFetchCount:  defaultSearchFetchCount,
			UploadsFetchCount: defaultUploadsFetchCount,
			MinConfidence:     defaultMinConfidence,
			BatchConcurrency:  defaultBatchConcurrency,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
