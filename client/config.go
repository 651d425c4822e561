package main

import (
	"encoding/json"
	"os"
)

// Config holds the client bridge's settings: where to listen locally for
// application connections, where to dial the SBMP server, and how to
// configure the endpoint each accepted connection gets.
type Config struct {
	ListenAddr    string `json:"listenaddr"`
	RemoteAddr    string `json:"remoteaddr"`
	Checksum      string `json:"checksum"`
	BufferSize    int    `json:"buffersize"`
	NoComp        bool   `json:"nocomp"`
	CRC32Disabled bool   `json:"crc32disabled"`
	Log           string `json:"log"`
	SnmpLog       string `json:"snmplog"`
	SnmpPeriod    int    `json:"snmpperiod"`
	Quiet         bool   `json:"quiet"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
