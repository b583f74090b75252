package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
)

const (
	logMaxBytes       = 5 * 1024 * 1024 // 5 MiB per file, spec.md §6
	logMaxGenerations = 5
)

// rotateIfNeeded implements spec.md §6's "logs/daemon.log rotated at
// 5 x 5 MiB": when the current log file has reached logMaxBytes, shift
// daemon.log -> daemon.log.1 -> ... -> daemon.log.4, dropping the oldest
// generation.
func rotateIfNeeded(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < logMaxBytes {
		return
	}

	oldest := fmt.Sprintf("%s.%d", path, logMaxGenerations-1)
	os.Remove(oldest)
	for i := logMaxGenerations - 2; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", path, i)
		to := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}
	if err := os.Rename(path, path+".1"); err != nil {
		log.Printf("[gitdaemon] log rotation: rename %s: %v", path, err)
		return
	}
	log.Printf("[gitdaemon] rotated log file at %s", humanize.IBytes(uint64(info.Size())))
}
