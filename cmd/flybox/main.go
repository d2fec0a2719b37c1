/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package main is the entry point for flybox, an interactive REPL that drives
the memtx core directly, in-process - no network protocol, no SQL front
end, matching spec.md §1's "network protocol framing... out of scope".

Command Types:
==============

 1. Local commands (prefixed with \):
    - \q or \quit : Exit the REPL
    - \h or \help : Display help

 2. Admin console commands, one per line:
    - AUTH [username]                 : authenticate the REPL operator
    - CREATE SPACE <name> <id> <n>    : create a space with n fields
    - CREATE INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>
    - MODIFY INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>
    - DROP INDEX <space> <iid>
    - REPLACE <space> <v1,v2,...>     : insert-or-update by primary key
    - SELECT <space>                  : dump every tuple in primary-key order
    - BEGIN / COMMIT / ROLLBACK       : explicit transaction control
    - CHECKPOINT                      : take a snapshot under SnapshotDir
    - DISCOVER                        : query mDNS for sibling nodes
    - EXPORT HISTORY <path>           : gzip the REPL history file to path

Architecture mirrors flydb-shell's synchronous read-eval-print loop, but
every command runs inside a fiber on one cord - the admin console is
itself a client of the fiber runtime, the same as any other caller of the
core (§5: "a fiber is the unit of scheduling within a cord").
*/
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"flydb/internal/alter"
	"flydb/internal/auth"
	"flydb/internal/cluster"
	"flydb/internal/compression"
	"flydb/internal/config"
	"flydb/internal/fiber"
	"flydb/internal/logging"
	"flydb/internal/memtx"
	"flydb/internal/schema"
	"flydb/internal/txn"
)

var log = logging.NewLogger("flybox")

// session holds every piece of REPL-visible state: the dictionary/engine
// pair the commands mutate, the checkpoint manager, the cord commands run
// on, and the one transaction BEGIN/COMMIT/ROLLBACK toggles.
type session struct {
	dict   *schema.Dictionary
	engine *memtx.Engine
	ckpt   *memtx.CheckpointManager
	cord   *fiber.Cord

	authenticated bool
	username      string

	tx      *txn.Transaction
	nextUID uint32
}

func newSession(cfg *config.Config) *session {
	dict := schema.NewDictionary()
	engine := memtx.NewEngine()
	// Every space flybox's DDL creates this run registers itself with
	// engine before any data arrives, so RecoverDictionary has nothing to
	// replay on a cold start - it only finds work once CHECKPOINT has run
	// in a previous session and left files under SnapshotDir. Schema itself
	// (which spaces/indexes exist) is never snapshotted; only tuple data is,
	// so a restart still requires re-issuing CREATE SPACE/CREATE INDEX
	// before the matching space-<id>.snap file means anything.
	strictEOF := cfg.RecoveryMode != "loose"
	if err := memtx.RecoverDictionary(dict, engine, cfg.SnapshotDir, nil, strictEOF); err != nil {
		log.Warn("recovery failed, starting with an empty dictionary", "error", err)
		_ = engine.SetState(memtx.InitialRecovery)
		_ = engine.SetState(memtx.FinalRecovery)
		_ = engine.SetState(memtx.OK)
	}
	dict.MarkRecoveryComplete()

	ckpt := memtx.NewCheckpointManager(dict, engine.VClock, cfg.SnapshotDir, cfg.CheckpointRateLimitBytesPerSec)

	return &session{
		dict:    dict,
		engine:  engine,
		ckpt:    ckpt,
		cord:    fiber.NewCord("flybox"),
		nextUID: schema.UIDPublic + 1,
	}
}

// withFiber runs fn to completion inside a fresh fiber on the session's
// cord and blocks the REPL's own goroutine (not a fiber) until it is done.
// Every command is dispatched this way so the core only ever sees writes
// from fiber context, matching §5's single-cord dispatch model.
func (s *session) withFiber(fn func(self *fiber.Fiber)) {
	done := make(chan struct{})
	f := s.cord.New("repl-cmd", func(self *fiber.Fiber, args ...interface{}) error {
		fn(self)
		close(done)
		return nil
	})
	s.cord.Wakeup(f)
	<-done
}

// currentTx returns the REPL's explicit transaction if BEGIN is active,
// otherwise opens and immediately returns a fresh autocommit one bound to
// self, mirroring the teacher's autocommit-by-default DML semantics.
func (s *session) currentTx(self *fiber.Fiber) (tx *txn.Transaction, autocommit bool) {
	if s.tx != nil {
		return s.tx, false
	}
	return txn.Begin(self), true
}

func main() {
	mgr := config.NewManager()
	if err := mgr.Load(); err != nil {
		log.Warn("config load failed, using defaults", "error", err)
	}
	cfg := mgr.Get()

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.GetDefaultDataDir()
	}

	store := auth.NewStore(auth.DefaultPath(dataDir))
	if !store.Exists() {
		pw, err := store.InitializeWithGeneratedPassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to initialize admin credential:", err)
			os.Exit(1)
		}
		fmt.Printf("generated admin password (shown once): %s\n", pw)
	}

	sess := newSession(cfg)
	defer sess.cord.Stop()
	defer sess.ckpt.Close()

	rl, err := createReadlineInstance(dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline init failed:", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("flybox - type \\h for help, \\q to quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "\\q" || line == "\\quit":
			return
		case line == "\\h" || line == "\\help":
			printHelp()
			continue
		}

		out, exit := sess.dispatch(rl, store, line)
		if out != "" {
			fmt.Println(out)
		}
		if exit {
			return
		}
	}
}

func printHelp() {
	fmt.Println(`flybox commands:
  AUTH [username]
  CREATE SPACE <name> <id> <field_count>
  CREATE INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>
  MODIFY INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>
  DROP INDEX <space> <iid>
  DROP SPACE <name>
  CREATE USER <name>
  DROP USER <name>
  GRANT <user> <space>
  REPLACE <space> <v1,v2,...>
  SELECT <space>
  BEGIN / COMMIT / ROLLBACK
  CHECKPOINT
  DISCOVER
  EXPORT HISTORY <path>
  \q \h`)
}

// dispatch wraps dispatchCommand with request tracking so every command
// gets a transaction id and a completion/failure log line, the same
// bookkeeping the teacher's wire server attaches to each inbound request.
func (s *session) dispatch(rl *readline.Instance, store *auth.Store, line string) (out string, exit bool) {
	rc := logging.NewRequestContext(s.username, line)
	out, exit = s.dispatchCommand(rl, store, line)
	if strings.HasPrefix(out, "ERROR") || strings.HasPrefix(out, "unrecognized") || strings.HasPrefix(out, "unknown") {
		rc.LogError(log, out)
	} else {
		rc.LogComplete(log, "ok")
	}
	return out, exit
}

func (s *session) dispatchCommand(rl *readline.Instance, store *auth.Store, line string) (out string, exit bool) {
	fields := strings.Fields(line)
	cmd := strings.ToUpper(fields[0])

	if cmd == "AUTH" {
		return s.handleAuth(rl, store, fields), false
	}
	if !s.authenticated {
		return "not authenticated - run AUTH first", false
	}

	switch cmd {
	case "BEGIN":
		s.withFiber(func(self *fiber.Fiber) {
			if s.tx != nil {
				out = "a transaction is already open"
				return
			}
			s.tx = txn.Begin(self)
			out = "transaction started"
		})
		return out, false
	case "COMMIT":
		if s.tx == nil {
			return "no open transaction", false
		}
		s.tx.Commit()
		s.tx = nil
		return "OK", false
	case "ROLLBACK":
		if s.tx == nil {
			return "no open transaction", false
		}
		s.tx.Rollback()
		s.tx = nil
		return "OK", false
	case "CREATE":
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "SPACE" {
			return s.handleCreateSpace(fields), false
		}
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "INDEX" {
			return s.handleCreateIndex(fields), false
		}
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "USER" {
			return s.handleCreateUser(fields), false
		}
		return "unknown CREATE form", false
	case "MODIFY":
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "INDEX" {
			return s.handleModifyIndex(fields), false
		}
		return "unknown MODIFY form", false
	case "DROP":
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "INDEX" {
			return s.handleDropIndex(fields), false
		}
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "SPACE" {
			return s.handleDropSpace(fields), false
		}
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "USER" {
			return s.handleDropUser(fields), false
		}
		return "unknown DROP form", false
	case "GRANT":
		return s.handleGrant(fields), false
	case "REPLACE":
		return s.handleReplace(fields), false
	case "SELECT":
		return s.handleSelect(fields), false
	case "CHECKPOINT":
		return s.handleCheckpoint(), false
	case "DISCOVER":
		return s.handleDiscover(), false
	case "EXPORT":
		if len(fields) >= 2 && strings.ToUpper(fields[1]) == "HISTORY" {
			return s.handleExportHistory(fields), false
		}
		return "unknown EXPORT form", false
	default:
		return fmt.Sprintf("unrecognized command %q", fields[0]), false
	}
}

func (s *session) handleAuth(rl *readline.Instance, store *auth.Store, fields []string) string {
	var username, password string
	if len(fields) >= 2 {
		username = fields[1]
	} else {
		fmt.Print("Username: ")
		u, err := rl.Readline()
		if err != nil {
			return "cancelled"
		}
		username = strings.TrimSpace(u)
	}

	pw, err := readPasswordMasked(rl, "Password: ")
	if err != nil {
		return "cancelled"
	}
	password = pw

	if !store.Authenticate(username, password) {
		return "AUTH failed"
	}
	s.authenticated = true
	s.username = username
	return fmt.Sprintf("AUTH OK (%s)", username)
}

// readPasswordMasked reads a password with asterisk masking via readline,
// falling back to x/term's line-discipline-level echo suppression when
// stdin isn't a readline-backed terminal (e.g. piped input in a test
// harness), the same two-path split flydb-shell's AUTH handler uses.
func readPasswordMasked(rl *readline.Instance, prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		rl.SetMaskRune('*')
		pw, err := rl.ReadPassword(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(pw)), nil
	}

	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pw)), nil
}

func (s *session) handleCreateSpace(fields []string) string {
	if len(fields) != 5 {
		return "usage: CREATE SPACE <name> <id> <field_count>"
	}
	name := fields[2]
	id, err1 := strconv.ParseUint(fields[3], 10, 32)
	fieldCount, err2 := strconv.Atoi(fields[4])
	if err1 != nil || err2 != nil {
		return "invalid id or field_count"
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		format := &schema.Format{FieldCount: fieldCount}
		sp := schema.NewSpace(uint32(id), schema.UIDAdmin, name, "memtx", format)
		if err := alter.CreateSpace(s.dict, tx, sp); err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		s.engine.RegisterSpace(sp)
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

func parseFieldSpecs(spec string) ([]schema.KeyPart, error) {
	var parts []schema.KeyPart
	for _, raw := range strings.Split(spec, ",") {
		kv := strings.SplitN(raw, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("expected field:type, got %q", raw)
		}
		fieldNo, err := strconv.Atoi(kv[0])
		if err != nil {
			return nil, err
		}
		parts = append(parts, schema.KeyPart{FieldNo: fieldNo, FieldType: schema.FieldType(strings.ToLower(kv[1]))})
	}
	return parts, nil
}

func (s *session) handleCreateIndex(fields []string) string {
	if len(fields) != 8 {
		return "usage: CREATE INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>"
	}
	spaceName, iidStr, name, typ, uniq, fieldSpec := fields[2], fields[3], fields[4], fields[5], fields[6], fields[7]

	sp := s.dict.SpaceByName(spaceName)
	if sp == nil {
		return fmt.Sprintf("no such space %q", spaceName)
	}
	iid, err := strconv.ParseUint(iidStr, 10, 32)
	if err != nil {
		return "invalid iid"
	}
	parts, err := parseFieldSpecs(fieldSpec)
	if err != nil {
		return err.Error()
	}

	def := &schema.KeyDef{
		IID:    uint32(iid),
		Name:   name,
		Type:   schema.IndexType(strings.ToUpper(typ)),
		Unique: strings.EqualFold(uniq, "unique"),
		Parts:  parts,
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		_, err := alter.AddIndex(s.dict, tx, s.engine, sp.ID, def)
		if err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

// handleModifyIndex redefines an existing index's KeyDef. When the new
// definition only renames the index, alter.ModifyIndex merges the
// drop-then-add into a single in-place rebuild instead of tearing the index
// down and rebuilding it from the primary key.
func (s *session) handleModifyIndex(fields []string) string {
	if len(fields) != 8 {
		return "usage: MODIFY INDEX <space> <iid> <name> <HASH|TREE|RTREE|BITSET> <unique|nonunique> <field:type,...>"
	}
	spaceName, iidStr, name, typ, uniq, fieldSpec := fields[2], fields[3], fields[4], fields[5], fields[6], fields[7]

	sp := s.dict.SpaceByName(spaceName)
	if sp == nil {
		return fmt.Sprintf("no such space %q", spaceName)
	}
	iid, err := strconv.ParseUint(iidStr, 10, 32)
	if err != nil {
		return "invalid iid"
	}
	parts, err := parseFieldSpecs(fieldSpec)
	if err != nil {
		return err.Error()
	}

	newDef := &schema.KeyDef{
		IID:    uint32(iid),
		Name:   name,
		Type:   schema.IndexType(strings.ToUpper(typ)),
		Unique: strings.EqualFold(uniq, "unique"),
		Parts:  parts,
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		_, err := alter.ModifyIndex(s.dict, tx, s.engine, sp.ID, uint32(iid), newDef)
		if err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

// handleDropSpace removes a space once the transaction commits, refusing
// the drop outright if any index besides the primary key is still present.
func (s *session) handleDropSpace(fields []string) string {
	if len(fields) != 3 {
		return "usage: DROP SPACE <name>"
	}
	sp := s.dict.SpaceByName(fields[2])
	if sp == nil {
		return fmt.Sprintf("no such space %q", fields[2])
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		if err := alter.DropSpace(s.dict, tx, sp.ID); err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		s.engine.UnregisterSpace(sp.ID)
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

func (s *session) handleDropIndex(fields []string) string {
	if len(fields) != 4 {
		return "usage: DROP INDEX <space> <iid>"
	}
	sp := s.dict.SpaceByName(fields[2])
	if sp == nil {
		return fmt.Sprintf("no such space %q", fields[2])
	}
	iid, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return "invalid iid"
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		_, err := alter.DropIndex(s.dict, tx, sp.ID, uint32(iid))
		if err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

// handleCreateUser installs a principal into the dictionary's own _user
// space, distinct from the REPL's local auth.Store credential file -
// CREATE USER is the schema-level identity GRANT attaches privileges to.
func (s *session) handleCreateUser(fields []string) string {
	if len(fields) != 3 {
		return "usage: CREATE USER <name>"
	}
	name := fields[2]

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		u := &schema.User{UID: s.nextUID, OwnerUID: schema.UIDAdmin, Type: schema.PrincipalUser, Name: name}
		if err := alter.CreateUser(s.dict, tx, u); err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		s.nextUID++
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

// handleDropUser removes a principal once the transaction commits.
func (s *session) handleDropUser(fields []string) string {
	if len(fields) != 3 {
		return "usage: DROP USER <name>"
	}
	u := s.dict.UserByName(fields[2])
	if u == nil {
		return fmt.Sprintf("no such user %q", fields[2])
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		if err := alter.DropUserDeferred(s.dict, tx, u.UID); err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

// handleGrant grants read+write on a space to a user, rolling back the
// grant if the transaction aborts.
func (s *session) handleGrant(fields []string) string {
	if len(fields) != 3 {
		return "usage: GRANT <user> <space>"
	}
	u := s.dict.UserByName(fields[1])
	if u == nil {
		return fmt.Sprintf("no such user %q", fields[1])
	}
	sp := s.dict.SpaceByName(fields[2])
	if sp == nil {
		return fmt.Sprintf("no such space %q", fields[2])
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		p := &schema.Privilege{
			GrantorID:  schema.UIDAdmin,
			GranteeID:  u.UID,
			ObjectType: schema.ObjectSpace,
			ObjectID:   sp.ID,
			Access:     schema.AccessRead | schema.AccessWrite,
		}
		alter.Grant(s.dict, tx, p)
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (s *session) handleReplace(fields []string) string {
	if len(fields) < 3 {
		return "usage: REPLACE <space> <v1,v2,...>"
	}
	sp := s.dict.SpaceByName(fields[1])
	if sp == nil {
		return fmt.Sprintf("no such space %q", fields[1])
	}
	raw := strings.Split(fields[2], ",")
	values := make([]interface{}, len(raw))
	for i, r := range raw {
		values[i] = parseValue(r)
	}

	var out string
	s.withFiber(func(self *fiber.Fiber) {
		tx, autocommit := s.currentTx(self)
		tuple := schema.NewTuple(sp.Format, values)

		primary := sp.Primary()
		if primary == nil {
			out = "space has no primary key"
			if autocommit {
				tx.Rollback()
			}
			return
		}
		var old *schema.Tuple
		if existing, found := primary.Get(primary.KeyOf(tuple)); found {
			old = existing
		}

		result, err := sp.Replace(old, tuple, schema.DupReplaceOrInsert)
		if err != nil {
			out = err.Error()
			if autocommit {
				tx.Rollback()
			}
			return
		}
		tx.RecordStmt(txn.Statement{Space: sp, Old: result, New: tuple, Mode: schema.DupReplaceOrInsert})
		if autocommit {
			tx.Commit()
		}
		out = "OK"
	})
	return out
}

func (s *session) handleSelect(fields []string) string {
	if len(fields) != 2 {
		return "usage: SELECT <space>"
	}
	sp := s.dict.SpaceByName(fields[1])
	if sp == nil {
		return fmt.Sprintf("no such space %q", fields[1])
	}
	primary := sp.Primary()
	if primary == nil {
		return "space has no primary key"
	}
	var b strings.Builder
	for _, t := range primary.All() {
		fmt.Fprintln(&b, t.Fields)
	}
	if b.Len() == 0 {
		return "(0 rows)"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *session) handleCheckpoint() string {
	ck := s.ckpt.BeginCheckpoint()
	if err := s.ckpt.WaitCheckpoint(ck); err != nil {
		s.ckpt.AbortCheckpoint(ck)
		return "checkpoint failed: " + err.Error()
	}
	if err := s.ckpt.CommitCheckpoint(ck); err != nil {
		return "checkpoint commit failed: " + err.Error()
	}
	return fmt.Sprintf("checkpoint %d committed", ck.ID)
}

func (s *session) handleDiscover() string {
	uuid := s.dict.ClusterUUID()
	if uuid == "" {
		uuid = "unset"
	}
	svc := cluster.NewDiscoveryService(cluster.DiscoveryConfig{
		NodeID:    "flybox-" + s.username,
		ServerID:  1,
		ClusterID: uuid,
	})
	nodes, err := svc.DiscoverNodes(2 * time.Second)
	if err != nil {
		return "discover failed: " + err.Error()
	}
	if len(nodes) == 0 {
		return "no peers found"
	}
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, fmt.Sprintf("%d@%s", n.ServerID, n.ClusterID))
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

func (s *session) handleExportHistory(fields []string) string {
	if len(fields) != 3 {
		return "usage: EXPORT HISTORY <path>"
	}
	histPath := historyFilePath(config.GetDefaultDataDir())
	data, err := os.ReadFile(histPath)
	if err != nil {
		return "no history to export: " + err.Error()
	}
	arc := compression.NewArchiver(compression.LevelDefault, 64)
	compressed, err := arc.Compress(data)
	if err != nil && err != compression.ErrDataTooSmall {
		return "compress failed: " + err.Error()
	}
	if err := os.WriteFile(fields[2], compressed, 0o600); err != nil {
		return "write failed: " + err.Error()
	}
	return fmt.Sprintf("exported %d bytes to %s", len(compressed), fields[2])
}

func historyFilePath(dataDir string) string {
	return filepath.Join(dataDir, "flybox_history")
}

func createReadlineInstance(dataDir string) (*readline.Instance, error) {
	cfg := &readline.Config{
		Prompt:          "flybox> ",
		HistoryFile:     historyFilePath(dataDir),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold: true,
	}
	return readline.NewEx(cfg)
}
