package config

import "time"

func d(v time.Duration) Duration {
	return Duration{Duration: v}
}

// getDefaultConfig retorna uma configuração padrão
func getDefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			LF:             "COM1",
			RF:             "COM2",
			RB:             "COM11",
			LB:             "COM4",
			NF:             "COM5",
			Kasa:           "COM6",
			BaudRate:       115200,
			QueueSize:      64,
			RetryDelay:     d(20 * time.Millisecond),
			ReconnectDelay: d(2 * time.Second),
		},
		Control: ControlConfig{
			WindMode:            "random",
			TickInterval:        d(20 * time.Millisecond),
			SendInterval:        d(100 * time.Millisecond),
			CyclePeriod:         d(5 * time.Second),
			JudgeWindow:         d(3 * time.Second),
			SimilarityThreshold: 0.8,
			Speed:               2,
			UpPower:             5,
			FallSpeed:           1,
			StartUpHeight:       110,
			UpHeight:            130,
			UpReadyTime:         d(7 * time.Second),
			HoldDuration:        d(0),
			SessionLength:       d(300 * time.Second),
			StartHeight:         150,
			BatchSize:           3,
			BoostButton:         "b",
			EventHistory:        200,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     d(30 * time.Second),
			WriteTimeout:    d(30 * time.Second),
			ShutdownTimeout: d(10 * time.Second),
		},
		Redis: RedisConfig{
			Host:       "localhost",
			Port:       6379,
			Password:   "",
			DB:         0,
			Prefix:     "windrig",
			Enabled:    false,
			MaxHistory: 1000,
			WriteEvery: d(500 * time.Millisecond),
		},
		PLC: PLCConfig{
			Enabled:    false,
			Host:       "192.168.1.100",
			Rack:       0,
			Slot:       1,
			DBNumber:   100,
			UpdateRate: d(500 * time.Millisecond),
			Timeout:    d(5 * time.Second),
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Instance: "windrig",
			Service:  "_windrig._tcp",
			Domain:   "local.",
		},
		Log: LogConfig{
			Level:  "info",
			Dir:    "logs",
			ToFile: false,
		},
	}
}

// Default retorna uma cópia da configuração padrão
func Default() *Config {
	cfg := getDefaultConfig()
	return &cfg
}
