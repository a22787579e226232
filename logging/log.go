// Package logging wires the per-subsystem loggers used across this
// engine to a single rotating file backend, the way the teacher's
// root-level log.go does for its own subsystems.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	stdoutN, err := os.Stdout.Write(p)
	if err != nil {
		return stdoutN, err
	}
	if logRotator != nil {
		if _, err := logRotator.Write(p); err != nil {
			return stdoutN, err
		}
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	// ChainLog covers the organizer/chain facade: reorg decisions, fork
	// selection, seqlock and strand transitions.
	ChainLog = backendLog.Logger("CHAN")
	// ValidateLog covers the three-stage validator package.
	ValidateLog = backendLog.Logger("VLDT")
	// StoreLog covers blockstore, txstore, and the UTXO index.
	StoreLog = backendLog.Logger("STOR")
	// OrphanLog covers the orphan pool.
	OrphanLog = backendLog.Logger("ORPH")
	// NetLog covers the network/peer layer.
	NetLog = backendLog.Logger("NET")
)

var subsystemLoggers = map[string]btclog.Logger{
	"CHAN": ChainLog,
	"VLDT": ValidateLog,
	"STOR": StoreLog,
	"ORPH": OrphanLog,
	"NET":  NetLog,
}

// InitRotator initializes the rotating file backend at logFile. It must
// run before any subsystem logger is used with file output enabled.
func InitRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("create log rotator: %w", err)
	}
	logRotator = r
	return nil
}

// SetLevel sets the level for one subsystem, ignoring unknown ids.
func SetLevel(subsystemID, level string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	lvl, _ := btclog.LevelFromString(level)
	logger.SetLevel(lvl)
}

// SetLevels sets every subsystem logger to level.
func SetLevels(level string) {
	for id := range subsystemLoggers {
		SetLevel(id, level)
	}
}
