package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajkula/dirmon/adapter/outbound/crypto"
	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
)

type generateConfigCmd struct {
	Path  string `arg:"" default:"dirmon.yaml" help:"Destination file"`
	Force bool   `help:"Overwrite an existing file"`
}

func (c *generateConfigCmd) Run() error {
	if _, err := os.Stat(c.Path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", c.Path)
	}

	if err := config.SaveConfig(config.DefaultConfig(), c.Path); err != nil {
		return err
	}

	fmt.Printf("Default configuration file generated at: %s\n", c.Path)
	return nil
}

type hashPasswordCmd struct {
	Password string `help:"Password to hash, read from stdin when empty" env:"DIRMON_ADMIN_PASSWORD"`
}

func (c *hashPasswordCmd) Run() error {
	password := c.Password
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("empty password")
	}

	cryptoService := crypto.NewCryptoService()
	salt := cryptoService.GenerateSalt()

	out, err := yaml.Marshal(map[string]map[string]any{
		"security": {
			"enableAuthentication": true,
			"adminPasswordHash":    cryptoService.HashPassword(password, salt),
			"adminPasswordSalt":    hex.EncodeToString(salt[:]),
		},
	})
	if err != nil {
		return err
	}

	fmt.Print(string(out))
	return nil
}

type actionNameCmd struct {
	Mask []string `arg:"" help:"Mask as a number (0x03) or action names (create,delete)"`
}

func (c *actionNameCmd) Run() error {
	mask, err := model.ParseMask(c.Mask...)
	if err != nil {
		return err
	}

	fmt.Printf("%#04x %s\n", uint32(mask), model.ActionName(mask))
	return nil
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Printf("dirmon %s\n", version)
	return nil
}
