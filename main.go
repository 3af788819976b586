package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/cmd"
)

func configureViper() {
	// read config file
	viper.SetConfigName("pvopt")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/pvopt/")
	viper.AddConfigPath("$HOME/.config/pvopt")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig() // Find and read the config file
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
}

func main() {
	configureViper()
	cmd.Execute()
}
