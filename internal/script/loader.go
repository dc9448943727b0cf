package script

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/dialog"
)

// ErrNoScript is returned by Load when an NPC has no script file.
var ErrNoScript = errors.New("npc has no script")

// Loader compiles NPC scripts from dir/npc/<npc id>.js and caches the
// compiled programs. Shared helpers under dir/lib are available to scripts
// through require().
type Loader struct {
	dir      string
	registry *require.Registry

	mu       sync.RWMutex
	programs map[int32]*goja.Program
}

func NewLoader(dir string) *Loader {
	l := &Loader{
		dir:      dir,
		programs: make(map[int32]*goja.Program),
	}
	l.registry = require.NewRegistry(require.WithGlobalFolders(filepath.Join(dir, "lib")))
	l.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(logPrinter{
		log: log.With().Str("component", "npc_script").Logger(),
	}))
	return l
}

func (l *Loader) Dir() string { return l.dir }

func (l *Loader) path(npcID int32) string {
	return filepath.Join(l.dir, "npc", strconv.FormatInt(int64(npcID), 10)+".js")
}

// Load returns a fresh script for one conversation with npcID.
func (l *Loader) Load(npcID int32) (*Script, error) {
	prog, err := l.program(npcID)
	if err != nil {
		return nil, err
	}
	return &Script{npcID: npcID, program: prog, registry: l.registry}, nil
}

// Script is Load behind the dialog.Script interface.
func (l *Loader) Script(npcID int32) (dialog.Script, error) {
	s, err := l.Load(npcID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Loader) program(npcID int32) (*goja.Program, error) {
	l.mu.RLock()
	prog, ok := l.programs[npcID]
	l.mu.RUnlock()
	if ok {
		return prog, nil
	}

	path := l.path(npcID)
	prog, err := compileFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNoScript, "npc %d", npcID)
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.programs[npcID] = prog
	l.mu.Unlock()
	return prog, nil
}

func compileFile(path string) (*goja.Program, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile(path, string(blob), false)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %q", path)
	}
	return prog, nil
}

// Reset drops every cached program so edited scripts are picked up.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.programs = make(map[int32]*goja.Program)
	l.mu.Unlock()
}

// CompileResult is the outcome of compiling one NPC script.
type CompileResult struct {
	NPCID int32
	Path  string
	Err   error
}

// CompileAll compiles every script under dir/npc and caches the ones that
// compile. Files not named after an NPC id are reported as errors.
func (l *Loader) CompileAll() ([]CompileResult, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "npc", "*.js"))
	if err != nil {
		return nil, errors.Wrap(err, "list npc scripts")
	}
	sort.Strings(paths)

	results := make([]CompileResult, 0, len(paths))
	for _, path := range paths {
		res := CompileResult{Path: path}
		id, err := strconv.ParseInt(strings.TrimSuffix(filepath.Base(path), ".js"), 10, 32)
		if err != nil {
			res.Err = errors.Errorf("script name %q is not an npc id", filepath.Base(path))
			results = append(results, res)
			continue
		}
		res.NPCID = int32(id)
		prog, err := compileFile(path)
		if err != nil {
			res.Err = err
		} else {
			l.mu.Lock()
			l.programs[res.NPCID] = prog
			l.mu.Unlock()
		}
		results = append(results, res)
	}
	return results, nil
}

type logPrinter struct {
	log zerolog.Logger
}

func (p logPrinter) Log(s string)   { p.log.Info().Msg(s) }
func (p logPrinter) Warn(s string)  { p.log.Warn().Msg(s) }
func (p logPrinter) Error(s string) { p.log.Error().Msg(s) }
