// SPDX-License-Identifier: MIT

package luaplugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/kzmx/subarr/internal/providers"
)

// FileError records why one plugin file was skipped during a scan.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", filepath.Base(e.Path), e.Err) }

// Scan loads every *.lua file in dir. A file that fails to load or
// validate is recorded and skipped; the scan continues. A missing
// directory yields an empty set.
func Scan(dir string) ([]*Plugin, []FileError) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []FileError{{Path: dir, Err: err}}
	}

	var (
		plugins  []*Plugin
		failures []FileError
		seen     = map[string]string{} // plugin name -> file
	)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		p, err := loadFile(path)
		if err != nil {
			failures = append(failures, FileError{Path: path, Err: err})
			continue
		}
		if prev, dup := seen[p.name]; dup {
			p.Close()
			failures = append(failures, FileError{Path: path,
				Err: fmt.Errorf("plugin name %q already defined by %s", p.name, filepath.Base(prev))})
			continue
		}
		seen[p.name] = path
		plugins = append(plugins, p)
	}
	return plugins, failures
}

func loadFile(path string) (*Plugin, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, err
	}

	name, ok := L.GetGlobal("name").(lua.LString)
	if !ok || name == "" {
		L.Close()
		return nil, fmt.Errorf("global `name` must be a non-empty string")
	}
	if string(name) != strings.ToLower(string(name)) {
		L.Close()
		return nil, fmt.Errorf("plugin name %q must be lowercase", name)
	}
	for _, fn := range []string{"search", "download"} {
		if _, ok := L.GetGlobal(fn).(*lua.LFunction); !ok {
			L.Close()
			return nil, fmt.Errorf("global `%s` must be a function", fn)
		}
	}

	return &Plugin{
		name:  string(name),
		path:  path,
		info:  infoFromLua(L),
		state: L,
	}, nil
}

func infoFromLua(L *lua.LState) providers.Info {
	info := providers.Info{Version: "0.0.0", Description: "lua plugin"}
	t, ok := L.GetGlobal("info").(*lua.LTable)
	if !ok {
		return info
	}
	str := func(key string, dst *string) {
		if v, ok := t.RawGetString(key).(lua.LString); ok {
			*dst = string(v)
		}
	}
	str("version", &info.Version)
	str("author", &info.Author)
	str("description", &info.Description)
	if v, ok := t.RawGetString("requires_auth").(lua.LBool); ok {
		info.RequiresAuth = bool(v)
	}
	if langs, ok := t.RawGetString("languages").(*lua.LTable); ok {
		for i := 1; i <= langs.Len(); i++ {
			if v, ok := langs.RawGetInt(i).(lua.LString); ok {
				info.Languages = append(info.Languages, string(v))
			}
		}
	}
	return info
}
