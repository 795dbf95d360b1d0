// SPDX-License-Identifier: MIT

// Package luaplugin loads subtitle providers written as Lua scripts. A
// script defines a global `name`, functions `search(query)` and
// `download(candidate)`, and an optional `info` table. Plugins run
// in-process with full trust.
package luaplugin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/subtitles"
)

// Plugin adapts one loaded Lua script to the provider contract. A Lua
// state is single-threaded, so every call runs under the mutex.
type Plugin struct {
	name string
	path string
	info providers.Info

	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

var errClosed = fmt.Errorf("plugin unloaded")

func (p *Plugin) Name() string         { return p.name }
func (p *Plugin) Info() providers.Info { return p.info }

// Close releases the Lua state. The plugin must not be used afterwards.
func (p *Plugin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.state.Close()
	}
}

func (p *Plugin) Search(ctx context.Context, q providers.Query) ([]providers.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("plugin %s: %w", p.name, errClosed)
	}

	p.state.SetContext(ctx)
	fn := p.state.GetGlobal("search")
	if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, queryToLua(p.state, q)); err != nil {
		return nil, fmt.Errorf("plugin %s: search: %w", p.name, err)
	}
	ret := p.state.Get(-1)
	p.state.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin %s: search returned %s, want table", p.name, ret.Type())
	}

	var out []providers.Candidate
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		c := candidateFromLua(entry)
		c.ProviderName = p.name
		out = append(out, c)
	}
	return out, nil
}

func (p *Plugin) Download(ctx context.Context, c providers.Candidate) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("plugin %s: %w", p.name, errClosed)
	}

	p.state.SetContext(ctx)
	fn := p.state.GetGlobal("download")
	if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, candidateToLua(p.state, c)); err != nil {
		return nil, fmt.Errorf("plugin %s: download: %w", p.name, err)
	}
	ret := p.state.Get(-1)
	p.state.Pop(1)

	s, ok := ret.(lua.LString)
	if !ok {
		return nil, fmt.Errorf("plugin %s: download returned %s, want string", p.name, ret.Type())
	}
	return []byte(s), nil
}

func queryToLua(L *lua.LState, q providers.Query) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("title", lua.LString(q.Title))
	t.RawSetString("year", lua.LNumber(q.Year))
	t.RawSetString("season", lua.LNumber(q.Season))
	t.RawSetString("episode", lua.LNumber(q.Episode))
	t.RawSetString("movie", lua.LBool(q.Movie))
	t.RawSetString("language", lua.LString(q.Language))
	t.RawSetString("kind", lua.LString(string(q.Kind)))
	t.RawSetString("file_hash", lua.LString(q.FileHash))
	t.RawSetString("hearing_impaired", lua.LBool(q.HearingImpaired))

	rel := L.NewTable()
	rel.RawSetString("group", lua.LString(q.Release.Group))
	rel.RawSetString("source", lua.LString(q.Release.Source))
	rel.RawSetString("resolution", lua.LString(q.Release.Resolution))
	rel.RawSetString("audio_codec", lua.LString(q.Release.AudioCodec))
	t.RawSetString("release", rel)
	return t
}

func candidateToLua(L *lua.LState, c providers.Candidate) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("external_id", lua.LString(c.ExternalID))
	t.RawSetString("language", lua.LString(c.Language))
	t.RawSetString("filename", lua.LString(c.Filename))
	t.RawSetString("format", lua.LString(string(c.Format)))
	t.RawSetString("download_url", lua.LString(c.DownloadURL))
	meta := L.NewTable()
	for k, v := range c.Metadata {
		meta.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("metadata", meta)
	return t
}

func candidateFromLua(t *lua.LTable) providers.Candidate {
	str := func(key string) string {
		if v, ok := t.RawGetString(key).(lua.LString); ok {
			return string(v)
		}
		return ""
	}
	num := func(key string) int {
		if v, ok := t.RawGetString(key).(lua.LNumber); ok {
			return int(v)
		}
		return 0
	}
	boolean := func(key string) bool {
		if v, ok := t.RawGetString(key).(lua.LBool); ok {
			return bool(v)
		}
		return false
	}

	c := providers.Candidate{
		ExternalID:      str("external_id"),
		Language:        str("language"),
		Filename:        str("filename"),
		StreamTitle:     str("stream_title"),
		Title:           str("title"),
		Year:            num("year"),
		Season:          num("season"),
		Episode:         num("episode"),
		HashMatch:       boolean("hash_match"),
		HearingImpaired: boolean("hearing_impaired"),
		DownloadURL:     str("download_url"),
		Release: providers.ReleaseInfo{
			Group:      strings.ToLower(str("release_group")),
			Source:     strings.ToLower(str("source")),
			Resolution: strings.ToLower(str("resolution")),
			AudioCodec: strings.ToLower(str("audio_codec")),
		},
	}
	if f, ok := subtitles.FormatFromExtension("x." + str("format")); ok {
		c.Format = f
	} else if f, ok := subtitles.FormatFromExtension(c.Filename); ok {
		c.Format = f
	} else {
		c.Format = subtitles.FormatSRT
	}
	if meta, ok := t.RawGetString("metadata").(*lua.LTable); ok {
		c.Metadata = map[string]string{}
		meta.ForEach(func(k, v lua.LValue) {
			c.Metadata[k.String()] = v.String()
		})
	}
	return c
}
