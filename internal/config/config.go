package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPath é o arquivo de configuração lido quando WINDRIG_CONFIG não está definido
const DefaultPath = "config.json"

// Config representa a configuração completa da aplicação
type Config struct {
	Serial    SerialConfig    `json:"serial"`
	Control   ControlConfig   `json:"control"`
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	PLC       PLCConfig       `json:"plc"`
	Discovery DiscoveryConfig `json:"discovery"`
	Log       LogConfig       `json:"log"`
}

// Duration aceita strings no formato do Go ("100ms", "5s") ou nanossegundos no JSON
type Duration struct {
	time.Duration
}

// MarshalJSON implementa json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implementa json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("duração inválida %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("duração inválida: %s", string(b))
	}
	return nil
}

// SerialConfig contém as portas do equipamento, na ordem LF, RF, RB, LB, NF, kasa
type SerialConfig struct {
	LF             string   `json:"lf"`
	RF             string   `json:"rf"`
	RB             string   `json:"rb"`
	LB             string   `json:"lb"`
	NF             string   `json:"nf"`
	Kasa           string   `json:"kasa"`
	BaudRate       int      `json:"baudRate"`
	QueueSize      int      `json:"queueSize"`
	RetryDelay     Duration `json:"retryDelay"`
	ReconnectDelay Duration `json:"reconnectDelay"`
}

// PortEntry associa o nome lógico do canal ao dispositivo
type PortEntry struct {
	Name   string
	Device string
}

// PortNames lista os canais na ordem de índice usada pelo protocolo
var PortNames = []string{"LF", "RF", "RB", "LB", "NF", "KASA"}

// TelemetryChannel é o índice da porta do sensor do guarda-chuva
const TelemetryChannel = 5

// Ports retorna as portas configuradas na ordem dos canais
func (s SerialConfig) Ports() []PortEntry {
	devices := []string{s.LF, s.RF, s.RB, s.LB, s.NF, s.Kasa}
	entries := make([]PortEntry, len(devices))
	for i, d := range devices {
		entries[i] = PortEntry{Name: PortNames[i], Device: d}
	}
	return entries
}

// ControlConfig contém os parâmetros do loop de controle
type ControlConfig struct {
	WindMode            string   `json:"windMode"` // "random" ou "demo"
	Seed                int64    `json:"seed"`     // 0 usa o relógio
	TickInterval        Duration `json:"tickInterval"`
	SendInterval        Duration `json:"sendInterval"`
	CyclePeriod         Duration `json:"cyclePeriod"`
	JudgeWindow         Duration `json:"judgeWindow"`
	SimilarityThreshold float64  `json:"similarityThreshold"`
	Speed               float64  `json:"speed"`
	UpPower             float64  `json:"upPower"`
	FallSpeed           float64  `json:"fallSpeed"`
	StartUpHeight       float64  `json:"startUpHeight"`
	UpHeight            float64  `json:"upHeight"`
	UpReadyTime         Duration `json:"upReadyTime"`
	HoldDuration        Duration `json:"holdDuration"`
	SessionLength       Duration `json:"sessionLength"`
	StartHeight         float64  `json:"startHeight"`
	BatchSize           int      `json:"batchSize"`
	BoostButton         string   `json:"boostButton"`
	EventHistory        int      `json:"eventHistory"`
}

// ServerConfig contém configurações do servidor HTTP/WebSocket
type ServerConfig struct {
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout"`
}

// RedisConfig contém configurações do Redis
type RedisConfig struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Password   string   `json:"password"`
	DB         int      `json:"db"`
	Prefix     string   `json:"prefix"`
	Enabled    bool     `json:"enabled"`
	MaxHistory int64    `json:"maxHistory"`
	WriteEvery Duration `json:"writeEvery"`
}

// PLCConfig contém configurações para espelhar o estado do equipamento num PLC S7
type PLCConfig struct {
	Enabled    bool     `json:"enabled"`
	Host       string   `json:"host"`
	Rack       int      `json:"rack"`
	Slot       int      `json:"slot"`
	DBNumber   int      `json:"dbNumber"`
	UpdateRate Duration `json:"updateRate"`
	Timeout    Duration `json:"timeout"`
}

// DiscoveryConfig contém configurações do anúncio mDNS
type DiscoveryConfig struct {
	Enabled  bool   `json:"enabled"`
	Instance string `json:"instance"`
	Service  string `json:"service"`
	Domain   string `json:"domain"`
}

// LogConfig contém configurações de log
type LogConfig struct {
	Level  string `json:"level"`
	Dir    string `json:"dir"`
	ToFile bool   `json:"toFile"`
}

// ConfigError indica uma configuração inválida ou um colaborador ausente na inicialização
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuração inválida (%s): %s", e.Field, e.Reason)
}

// Load carrega a configuração do arquivo ou usa valores padrão
func Load() (*Config, error) {
	path := DefaultPath
	if p := os.Getenv("WINDRIG_CONFIG"); p != "" {
		path = p
	}
	return LoadFile(path)
}

// LoadFile carrega a configuração de um caminho específico.
// Arquivo inexistente não é erro: os padrões são usados.
func LoadFile(path string) (*Config, error) {
	config := getDefaultConfig()

	// Verificar se existe um arquivo de configuração
	if _, err := os.Stat(path); err == nil {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("erro ao abrir %s: %w", path, err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return nil, fmt.Errorf("erro ao decodificar %s: %w", path, err)
		}
	}

	// Sobrescrever com variáveis de ambiente, se existirem
	applyEnvironmentOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnvironmentOverrides sobrescreve configurações com variáveis de ambiente
func applyEnvironmentOverrides(config *Config) {
	ports := map[string]*string{
		"LF":   &config.Serial.LF,
		"RF":   &config.Serial.RF,
		"RB":   &config.Serial.RB,
		"LB":   &config.Serial.LB,
		"NF":   &config.Serial.NF,
		"KASA": &config.Serial.Kasa,
	}
	for name, target := range ports {
		if v := os.Getenv("WINDRIG_PORT_" + name); v != "" {
			*target = v
		}
	}

	if v, ok := envInt("WINDRIG_BAUD"); ok {
		config.Serial.BaudRate = v
	}
	if v := os.Getenv("WINDRIG_DEMO"); v != "" {
		if demo, err := strconv.ParseBool(v); err == nil {
			if demo {
				config.Control.WindMode = "demo"
			} else {
				config.Control.WindMode = "random"
			}
		}
	}
	if v := os.Getenv("WINDRIG_REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
	if v, ok := envInt("WINDRIG_SERVER_PORT"); ok {
		config.Server.Port = v
	}
	if v := os.Getenv("WINDRIG_LOG_LEVEL"); v != "" {
		config.Log.Level = strings.ToLower(v)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate verifica os limites dos parâmetros. Retorna *ConfigError.
func (c *Config) Validate() error {
	for _, p := range c.Serial.Ports() {
		if strings.TrimSpace(p.Device) == "" {
			return &ConfigError{Field: "serial." + strings.ToLower(p.Name), Reason: "porta não definida"}
		}
	}
	if c.Serial.BaudRate <= 0 {
		return &ConfigError{Field: "serial.baudRate", Reason: "deve ser positivo"}
	}
	if c.Serial.QueueSize <= 0 {
		return &ConfigError{Field: "serial.queueSize", Reason: "deve ser positivo"}
	}

	ctl := c.Control
	switch strings.ToLower(ctl.WindMode) {
	case "", "random", "demo", "sequential", "demo-sequential":
	default:
		return &ConfigError{Field: "control.windMode", Reason: fmt.Sprintf("modo desconhecido %q", ctl.WindMode)}
	}
	if ctl.TickInterval.Duration <= 0 || ctl.SendInterval.Duration <= 0 {
		return &ConfigError{Field: "control.tickInterval", Reason: "intervalos devem ser positivos"}
	}
	if ctl.CyclePeriod.Duration <= time.Second {
		return &ConfigError{Field: "control.cyclePeriod", Reason: "deve ser maior que 1s"}
	}
	if ctl.JudgeWindow.Duration <= 0 {
		return &ConfigError{Field: "control.judgeWindow", Reason: "deve ser positivo"}
	}
	if ctl.SimilarityThreshold < -1 || ctl.SimilarityThreshold > 1 {
		return &ConfigError{Field: "control.similarityThreshold", Reason: "deve estar entre -1 e 1"}
	}
	if ctl.UpHeight <= ctl.StartUpHeight {
		return &ConfigError{Field: "control.upHeight", Reason: "deve ser maior que startUpHeight"}
	}
	if ctl.FallSpeed < 0 || ctl.UpReadyTime.Duration < 0 || ctl.HoldDuration.Duration < 0 {
		return &ConfigError{Field: "control", Reason: "valores negativos não são permitidos"}
	}
	if len([]rune(ctl.BoostButton)) > 1 {
		return &ConfigError{Field: "control.boostButton", Reason: "deve ter no máximo um caractere"}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Reason: "porta fora do intervalo"}
	}
	return nil
}
