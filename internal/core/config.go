package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// BufferSize mirrors the ENet host receive/send buffer presets. The zero
// value lets the transport pick its own default.
type BufferSize int32

const (
	BufferSizeDefault BufferSize = 0
	BufferSizeSmall   BufferSize = 256 * 1024
	BufferSizeMedium  BufferSize = 512 * 1024
	BufferSizeLarge   BufferSize = 1024 * 1024
)

// Config contains all of the configuration options available to the main
// server and to every session server it provisions.
type Config struct {
	// Hostname or IP address on which the main server and every session
	// server it spawns will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// Full path to a file logs should be written to. Blank writes to stdout.
	LogFilePath string `mapstructure:"log_file_path"`

	MainServer struct {
		// Port on which the main server accepts Login/CreateSession/GetSessionList traffic.
		Port int `mapstructure:"port"`
		// Channel and packet flag used for the Login reply.
		LoginChannel   uint8  `mapstructure:"login_channel"`
		LoginReliable  bool   `mapstructure:"login_reliable"`
		// Channel and packet flag shared by the session-list and session-creation replies.
		SessionChannel  uint8 `mapstructure:"session_channel"`
		SessionReliable bool  `mapstructure:"session_reliable"`
	} `mapstructure:"main_server"`

	SessionServer struct {
		// Inclusive [Low, High] range of ports the fleet may provision session servers on.
		PortRangeLow  uint16 `mapstructure:"port_range_low"`
		PortRangeHigh uint16 `mapstructure:"port_range_high"`
		// Upper bound on the number of session servers the fleet will provision.
		MaxSessions int `mapstructure:"max_sessions"`
		// ENet host parameters applied to every provisioned session server.
		MaxConnections int        `mapstructure:"max_connections"`
		MaxChannels    int        `mapstructure:"max_channels"`
		QueueSize      int        `mapstructure:"queue_size"`
		InBandwidth    uint32     `mapstructure:"incoming_bandwidth"`
		OutBandwidth   uint32     `mapstructure:"outgoing_bandwidth"`
		BufferSize     BufferSize `mapstructure:"buffer_size"`
		// Channel and packet flag used for the JoinSession reply.
		JoinChannel  uint8 `mapstructure:"join_channel"`
		JoinReliable bool  `mapstructure:"join_reliable"`
	} `mapstructure:"session_server"`

	Debugging struct {
		// Enable a localhost pprof server for runtime profiling.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		PprofPort    int  `mapstructure:"pprof_port"`
		// Log every decoded packet header at debug level.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "NETCORE"

// LoadConfig initializes Viper with the contents of the config file under configPath
// and returns the populated Config, applying environment variable overrides of the
// form NETCORE_SECTION_KEY for every key present in the file.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s\n", configPath)
		} else {
			fmt.Printf("error reading config file: %v\n", err)
		}
		os.Exit(1)
	}

	// Allows nested yaml config options to be overridden through environment
	// variables, e.g. session_server.max_sessions via NETCORE_SESSION_SERVER_MAX_SESSIONS.
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s\n", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v\n", err)
		os.Exit(1)
	}
	return config
}

// MainServerAddress returns the address the main server should bind to.
func (c *Config) MainServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.MainServer.Port)
}
