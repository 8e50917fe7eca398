// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"path/filepath"
	"testing"

	"codeberg.org/coursemix/coursemix/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want TLSMode
	}{
		{"explicit off", config.Config{TLS: config.TLSConfig{Mode: "off"}, Server: config.ServerConfig{Host: "coursemix.ca"}}, TLSModeOff},
		{"explicit manual", config.Config{TLS: config.TLSConfig{Mode: "Manual"}}, TLSModeManual},
		{"explicit acme", config.Config{TLS: config.TLSConfig{Mode: "acme"}}, TLSModeACME},
		{"auto on localhost", config.Config{TLS: config.TLSConfig{Mode: "auto"}, Server: config.ServerConfig{Host: "localhost"}}, TLSModeOff},
		{"auto with cert files", config.Config{
			TLS:    config.TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"},
			Server: config.ServerConfig{Host: "coursemix.ca"},
		}, TLSModeManual},
		{"auto on ip without certs", config.Config{Server: config.ServerConfig{Host: "10.0.0.5"}}, TLSModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveTLSMode(&tt.cfg))
		})
	}
}

func TestSetupTLS_Off(t *testing.T) {
	result, err := SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "off"}})

	require.NoError(t, err)
	assert.Equal(t, TLSModeOff, result.Mode)
	assert.Nil(t, result.TLSConfig)
}

func TestSetupManual_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := setupManual(&config.Config{TLS: config.TLSConfig{CertFile: filepath.Join(dir, "cert.pem")}})
	require.Error(t, err)

	_, err = setupManual(&config.Config{TLS: config.TLSConfig{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	}})
	assert.ErrorContains(t, err, "certificate file not found")
}
