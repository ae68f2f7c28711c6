package wire

import (
	"strings"
)

// Status tokens. StatusFail and StatusFailComplete are distinct from plain
// FAILURE: FAIL is the hard rejection a failed disk gives every command, and
// FAIL-COMPLETE acknowledges the fail command itself.
const (
	StatusSuccess      = "SUCCESS"
	StatusFailure      = "FAILURE"
	StatusFail         = "FAIL"
	StatusFailComplete = "FAIL-COMPLETE"
)

// Coordinator command catalog.
const (
	CmdRegisterUser         = "register-user"
	CmdRegisterDisk         = "register-disk"
	CmdConfigureDSS         = "configure-dss"
	CmdList                 = "ls"
	CmdCopy                 = "copy"
	CmdCopyComplete         = "copy-complete"
	CmdRead                 = "read"
	CmdReadComplete         = "read-complete"
	CmdDiskFailure          = "disk-failure"
	CmdRecoveryComplete     = "recovery-complete"
	CmdDecommissionDSS      = "decommission-dss"
	CmdDecommissionComplete = "decommission-complete"
	CmdDeregisterUser       = "deregister-user"
	CmdDeregisterDisk       = "deregister-disk"
)

// Disk command catalog.
const (
	CmdStoreBlock  = "store-block"
	CmdReadBlock   = "read-block"
	CmdGetStripe   = "get-stripe"
	CmdDeleteArray = "delete-array"
	CmdFail        = "fail"
	CmdRestore     = "restore"
)

// coordinatorArgc maps each coordinator command to its exact argument count.
var coordinatorArgc = map[string]int{
	CmdRegisterUser:         4,
	CmdRegisterDisk:         4,
	CmdConfigureDSS:         3,
	CmdList:                 0,
	CmdCopy:                 3,
	CmdCopyComplete:         4,
	CmdRead:                 3,
	CmdReadComplete:         3,
	CmdDiskFailure:          1,
	CmdRecoveryComplete:     2,
	CmdDecommissionDSS:      1,
	CmdDecommissionComplete: 1,
	CmdDeregisterUser:       1,
	CmdDeregisterDisk:       1,
}

// diskArgc maps each disk command to its exact argument count.
var diskArgc = map[string]int{
	CmdStoreBlock:  5,
	CmdReadBlock:   3,
	CmdGetStripe:   3,
	CmdDeleteArray: 1,
	CmdFail:        0,
	CmdRestore:     0,
}

// CoordinatorArgc returns the argument count for a coordinator command and
// whether the command is part of the catalog.
func CoordinatorArgc(cmd string) (int, bool) {
	n, ok := coordinatorArgc[cmd]
	return n, ok
}

// DiskArgc returns the argument count for a disk command and whether the
// command is part of the catalog.
func DiskArgc(cmd string) (int, bool) {
	n, ok := diskArgc[cmd]
	return n, ok
}

// EncodeRequest builds a request payload from a command and its arguments.
func EncodeRequest(cmd string, args ...string) []byte {
	if len(args) == 0 {
		return []byte(cmd)
	}
	return []byte(cmd + " " + strings.Join(args, " "))
}

// DecodeRequest splits a request payload into command and arguments.
// An empty payload decodes to an empty command.
func DecodeRequest(payload []byte) (cmd string, args []string) {
	parts := strings.Fields(string(payload))
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// OK builds a success response, optionally with result fields.
func OK(fields ...string) []byte {
	if len(fields) == 0 {
		return []byte(StatusSuccess)
	}
	return []byte(StatusSuccess + " " + strings.Join(fields, " "))
}

// Failure builds a plain failure response.
func Failure() []byte {
	return []byte(StatusFailure)
}

// IsSuccess reports whether a response payload carries the success token.
func IsSuccess(payload []byte) bool {
	s := string(payload)
	return s == StatusSuccess || strings.HasPrefix(s, StatusSuccess+" ") ||
		strings.HasPrefix(s, StatusSuccess+"\n")
}

// Fields splits a success response into its result fields, dropping the
// status token. Returns nil for a bare success.
func Fields(payload []byte) []string {
	parts := strings.Fields(string(payload))
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}
