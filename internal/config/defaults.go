package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:           "info",
			RunMinutes:         1380, // 23h; leaves headroom for a daily restart
			PollTimeoutSeconds: 30,
			Caption:            "Here's your GMAT question!",
		},
		Channels: ChannelsConfig{
			Platform: "zalo",
			Zalo: ZaloConfig{
				APIBase: "https://bot-api.zapps.vn",
			},
		},
		Corpus: CorpusConfig{
			BaseURL:        "https://mister-teddy.github.io/gmat-database",
			TimeoutSeconds: 30,
		},
		Render: RenderConfig{
			Width:          1200,
			Quality:        100,
			Headless:       true,
			TimeoutSeconds: 60,
			SettleMillis:   2000,
		},
		Publish: PublishConfig{
			ReleaseTag: "assets",
			APIBase:    "https://api.github.com",
			UploadBase: "https://uploads.github.com",
		},
		Journal: JournalConfig{
			Enabled: true,
			DBPath:  "~/.gmatbot/journal.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}
