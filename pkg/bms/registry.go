package bms

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/james-see/om2bms/pkg/chart"
)

// MaxIndex is the largest two-character base-36 index, "ZZ"
const MaxIndex = 36*36 - 1

// SilentToken is placed where a note plays no keysound. It shares its
// spelling with the last sound index, so a chart using all 1295 indices
// makes silent notes play that sound.
const SilentToken = "ZZ"

// ErrRegistryExhausted is returned when more distinct sounds or tempos are
// needed than two-character indices can address
var ErrRegistryExhausted = errors.New("index space exhausted")

// EncodeIndex spells n as a two-character base-36 index. n must be in [1, MaxIndex].
func EncodeIndex(n int) (string, error) {
	if n < 1 || n > MaxIndex {
		return "", fmt.Errorf("index %d: %w", n, ErrRegistryExhausted)
	}
	s := strings.ToUpper(strconv.FormatInt(int64(n), 36))
	if len(s) < 2 {
		s = "0" + s
	}
	return s, nil
}

// Entry is one registered sound
type Entry struct {
	Index    string
	Key      chart.SoundKey
	Filename string
}

// Registry hands out one stable index per distinct sound key, in first-seen order
type Registry struct {
	indices map[chart.SoundKey]string
	entries []Entry
	strict  bool
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A strict registry fails when
// indices run out; a lenient one logs and hands out empty indices.
func NewRegistry(strict bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		indices: make(map[chart.SoundKey]string),
		strict:  strict,
		logger:  logger,
	}
}

// Intern returns the index for key, assigning the next free one on first sight
func (r *Registry) Intern(key chart.SoundKey) (string, error) {
	if idx, ok := r.indices[key]; ok {
		return idx, nil
	}

	idx, err := EncodeIndex(len(r.entries) + 1)
	if err != nil {
		if r.strict {
			return "", fmt.Errorf("sound %q: %w", FilenameFor(key), err)
		}
		r.logger.Warn("sound dropped, no free index", "sound", FilenameFor(key))
		r.indices[key] = ""
		return "", nil
	}

	if idx == SilentToken {
		r.logger.Warn("last sound index shares the silent token, silent notes will play it",
			"index", idx, "sound", FilenameFor(key))
	}
	r.indices[key] = idx
	r.entries = append(r.entries, Entry{Index: idx, Key: key, Filename: FilenameFor(key)})
	return idx, nil
}

// Lookup returns the index of an already interned key. Keys dropped by a
// lenient registry report an empty index.
func (r *Registry) Lookup(key chart.SoundKey) (string, bool) {
	idx, ok := r.indices[key]
	return idx, ok
}

// Entries returns registered sounds in index order
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Len returns the number of registered sounds
func (r *Registry) Len() int {
	return len(r.entries)
}

var sampleSetNames = map[int]string{
	1: "normal",
	2: "soft",
	3: "drum",
}

var hitSoundNames = map[int]string{
	0: "none",
	1: "normal",
	2: "whistle",
	4: "finish",
	8: "clap",
}

// FilenameFor returns the sample file a sound key refers to. Keys without an
// explicit filename follow the skin naming "<set>-hit<sound><index>.wav".
func FilenameFor(key chart.SoundKey) string {
	if key.Filename != "" {
		return key.Filename
	}

	set, ok := sampleSetNames[key.SampleSet]
	if !ok {
		set = "normal"
	}
	sound, ok := hitSoundNames[key.Kind]
	if !ok {
		sound = "normal"
	}

	index := ""
	if key.CustomIndex > 1 {
		index = strconv.Itoa(key.CustomIndex)
	}
	return set + "-hit" + sound + index + ".wav"
}
