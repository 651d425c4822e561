// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"log"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ignacioSepam/sbmp/endpoint"
	"github.com/ignacioSepam/sbmp/frame"
	"github.com/ignacioSepam/sbmp/sbmpstat"
	"github.com/ignacioSepam/sbmp/std"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "sbmp-client"
	myApp.Usage = "local-listening SBMP bridge client"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listenaddr,l",
			Value: ":12948",
			Usage: "local listen address for application connections",
		},
		cli.StringFlag{
			Name:  "remoteaddr,r",
			Value: "127.0.0.1:29900",
			Usage: "sbmp-server address to dial for each accepted connection",
		},
		cli.StringFlag{
			Name:  "checksum",
			Value: "crc32",
			Usage: "preferred checksum kind to advertise: none, xor, crc32",
		},
		cli.IntFlag{
			Name:  "buffersize",
			Value: 65536,
			Usage: "own receive buffer size advertised during handshake, capped at 65535",
		},
		cli.BoolFlag{
			Name:  "nocomp",
			Usage: "disable snappy compression on the tunnel connection",
		},
		cli.BoolFlag{
			Name:  "crc32disabled",
			Usage: "report CRC32 unavailable and downgrade to XOR",
		},
		cli.StringFlag{
			Name:  "snmplog",
			Value: "",
			Usage: "collect endpoint counters to file, aware of Go time format, e.g. ./snmp-20060102.log",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 60,
			Usage: "snmp collect period, in seconds",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "suppress per-connection open/close messages",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.ListenAddr = c.String("listenaddr")
		config.RemoteAddr = c.String("remoteaddr")
		config.Checksum = c.String("checksum")
		config.BufferSize = c.Int("buffersize")
		config.NoComp = c.Bool("nocomp")
		config.CRC32Disabled = c.Bool("crc32disabled")
		config.Log = c.String("log")
		config.SnmpLog = c.String("snmplog")
		config.SnmpPeriod = c.Int("snmpperiod")
		config.Quiet = c.Bool("quiet")

		if c.String("c") != "" {
			checkError(parseJSONConfig(&config, c.String("c")))
		}

		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			checkError(err)
			defer f.Close()
			log.SetOutput(f)
		}

		cksum, err := parseChecksum(config.Checksum)
		checkError(err)

		log.Println("version:", VERSION)
		log.Println("listening on:", config.ListenAddr)
		log.Println("remote address:", config.RemoteAddr)
		log.Println("checksum:", config.Checksum)
		log.Println("buffersize:", config.BufferSize)
		log.Println("compression:", !config.NoComp)
		log.Println("snmplog:", config.SnmpLog)
		log.Println("snmpperiod:", config.SnmpPeriod)

		listener, err := net.Listen("tcp", config.ListenAddr)
		checkError(err)

		var snmp endpoint.Snmp
		stop := make(chan struct{})
		go sbmpstat.Logger(&snmp, config.SnmpLog, time.Duration(config.SnmpPeriod)*time.Second, stop)

		for {
			localConn, err := listener.Accept()
			if err != nil {
				log.Fatalf("%+v", err)
			}
			go handleConn(localConn, &config, cksum, &snmp)
		}
	}
	myApp.Run(os.Args)
}

// handleConn dials remoteaddr for one local application connection and
// bridges the two over an SBMP endpoint, per-connection, as the initiating
// (client) role.
func handleConn(localConn net.Conn, config *Config, cksum frame.ChecksumKind, snmp *endpoint.Snmp) {
	logln := func(v ...any) {
		if !config.Quiet {
			log.Println(v...)
		}
	}

	remoteConn, err := net.Dial("tcp", config.RemoteAddr)
	if err != nil {
		logln("dial:", errors.Wrap(err, "net.Dial"))
		localConn.Close()
		return
	}

	logln("bridge opened", "local:", localConn.RemoteAddr(), "remote:", remoteConn.RemoteAddr())
	defer logln("bridge closed", "local:", localConn.RemoteAddr(), "remote:", remoteConn.RemoteAddr())

	bufferSize := config.BufferSize
	if bufferSize > 0xFFFF {
		bufferSize = 0xFFFF
	}
	opts := []endpoint.Option{
		endpoint.WithOwnChecksum(cksum),
		endpoint.WithOwnBufferSize(uint16(bufferSize)),
		endpoint.WithOnHandshakeSuccess(func(ep *endpoint.Endpoint) {
			logln("handshake complete", "local:", localConn.RemoteAddr(), "remote:", remoteConn.RemoteAddr())
		}),
	}
	if config.CRC32Disabled {
		opts = append(opts, endpoint.WithCRC32Disabled())
	}

	if err := std.Bridge(localConn, remoteConn, true, !config.NoComp, opts...); err != nil {
		logln("bridge:", err)
	}
}

func parseChecksum(name string) (frame.ChecksumKind, error) {
	switch name {
	case "none":
		return frame.ChecksumNone, nil
	case "xor":
		return frame.ChecksumXOR, nil
	case "crc32":
		return frame.ChecksumCRC32, nil
	default:
		return 0, errors.Errorf("unknown checksum kind: %q", name)
	}
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
