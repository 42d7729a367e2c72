package wal

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"adabank/internal/config"
	"adabank/internal/domain/ledger"
	"adabank/internal/pkg/logging"
)

// ReplayStats summarizes one replay pass.
type ReplayStats struct {
	Applied  int
	Warnings int
}

// Replay rebuilds the account table from the log at path. Comments and blank
// lines are skipped; malformed lines and impossible transitions produce a
// warning but never stop the replay — the final recorded balance wins. A
// missing file is an empty bank, not an error.
func Replay(path string, tab *ledger.Table) (ReplayStats, error) {
	var stats ReplayStats

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("open transaction log %s: %w", path, err)
	}
	defer f.Close()

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if applyLine(tab, line, lineNo, &stats) {
			stats.Applied++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read transaction log %s: %w", path, err)
	}
	return stats, nil
}

func applyLine(tab *ledger.Table, line string, lineNo int, stats *ReplayStats) bool {
	warn := func(msg string) {
		stats.Warnings++
		logging.Warn("transaction log replay", "line", lineNo, "reason", msg, "record", line)
	}

	fields := strings.Fields(line)
	verb := fields[0]

	var want int
	switch verb {
	case VerbCreate:
		want = 3
	case VerbDeposit, VerbWithdraw:
		want = 4
	case VerbClose:
		want = 2
	default:
		warn("unknown verb")
		return false
	}
	if len(fields) != want {
		warn("wrong field count")
		return false
	}

	nums := make([]int64, len(fields)-1)
	for i, tok := range fields[1:] {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || n < 0 {
			warn("malformed number")
			return false
		}
		nums[i] = n
	}

	id64 := nums[0]
	if id64 >= config.MaxAccounts {
		warn("account id out of range")
		return false
	}
	id := int32(id64)

	switch verb {
	case VerbCreate:
		if tab.Active(id) {
			warn("create over an active account")
		}
		tab.Set(id, nums[1])
	case VerbDeposit:
		if !tab.Active(id) {
			warn("deposit to an inactive account")
		}
		tab.Set(id, nums[2])
	case VerbWithdraw:
		if !tab.Active(id) {
			warn("withdraw from an inactive account")
		}
		tab.Set(id, nums[2])
	case VerbClose:
		if !tab.Active(id) {
			warn("close of an inactive account")
		}
		tab.Close(id)
	}
	return true
}
