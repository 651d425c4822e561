// Package sbmpstat periodically dumps an endpoint's Snmp counters to a CSV
// file, adapted from the teacher's std/snmp.go SnmpLogger (same
// ticker+encoding/csv+header-on-first-write shape, reading
// endpoint.Snmp instead of kcp.DefaultSnmp).
package sbmpstat

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignacioSepam/sbmp/endpoint"
)

// Logger appends one CSV row of snmp's counters to path every interval,
// formatting path with time.Format on each write the same way the teacher's
// -snmplog flag does (so "./snmp-20060102.log" rolls a new file per day).
// It returns when stop is closed or a write fails, and at once if path is
// empty or interval is not positive; callers run it in its own goroutine.
func Logger(snmp *endpoint.Snmp, path string, interval time.Duration, stop <-chan struct{}) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := appendRow(snmp, path); err != nil {
				fmt.Fprintln(os.Stderr, "sbmpstat:", err)
				return
			}
		}
	}
}

func appendRow(snmp *endpoint.Snmp, path string) error {
	dir, file := filepath.Split(path)
	name := dir + time.Now().Format(file)

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, snmp.Header()...)); err != nil {
			return err
		}
	}
	row := append([]string{fmt.Sprint(time.Now().Unix())}, snmp.ToSlice()...)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
