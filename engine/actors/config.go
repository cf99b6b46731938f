package actors

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"keyholder/engine/library"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	// a .env file is optional, it only seeds KEYHOLDER_* overrides
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		library.LogCLI(err.Error(), 2)
	}
	config.SetEnvPrefix("keyholder")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", homeDir+"/keyholder/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("flatFileDir", "data/")
	config.SetDefault("logLevel", 4)
	config.SetDefault("doNotPublish", false)
	config.SetDefault("relays", []string{"wss://nostr.688.org"})
	config.SetDefault("eventKind", 7250)
	config.SetDefault("notificationKind", 7251)
	// empty disables the prometheus endpoint
	config.SetDefault("metricsAddr", "")
	// units minted to the operator's address when the ledger starts
	config.SetDefault("operatorBalance", 0)
	// Create our working directory and config file if not exist
	initRootDir(config)
	touch(config.GetString("rootDir") + "config.yaml")
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	library.SetLogLevel(config.GetInt("logLevel"))
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.MkdirAll(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 0)
		}
	}
}

func touch(path string) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		library.LogCLI(err, 0)
		return
	}
	f.Close()
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}
