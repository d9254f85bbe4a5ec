package voice

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/speech"
)

// playerCandidates lists known ffmpeg install locations per GOOS. A bare
// "ffmpeg" is looked up on PATH.
var playerCandidates = map[string][]string{
	"darwin":  {"/opt/homebrew/bin/ffmpeg", "/usr/local/bin/ffmpeg", "ffmpeg"},
	"windows": {`C:\ffmpeg\bin\ffmpeg.exe`, "ffmpeg.exe"},
	"linux":   {"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg", "ffmpeg"},
}

// NewPlayerResolver returns a resolver for the ffmpeg executable. A non-empty
// override is the only candidate checked.
func NewPlayerResolver(override string) speech.PlayerResolver {
	return func() (string, error) {
		return resolvePlayer(override, runtime.GOOS)
	}
}

func resolvePlayer(override, goos string) (string, error) {
	candidates := playerCandidates[goos]
	if override != "" {
		candidates = []string{override}
	}
	if len(candidates) == 0 {
		candidates = []string{"ffmpeg"}
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	log.Debug().Str("os", goos).Strs("candidates", candidates).Msg("No ffmpeg executable found")
	return "", fmt.Errorf("%w: tried %v", speech.ErrPlayerUnavailable, candidates)
}
