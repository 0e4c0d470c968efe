package prompt

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/franz/music-catalog/internal/util"
)

// stopGrace is how long a player gets to exit after SIGTERM before it is killed
const stopGrace = 500 * time.Millisecond

// Previewer plays a file in the background until stopped
type Previewer interface {
	Play(path string) error
	Stop()
}

// Player previews audio with the first command line player found on PATH
type Player struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	commands [][]string
	logger   *util.Logger
}

// DefaultCommands lists the supported players in order of preference;
// the file path is appended to each
func DefaultCommands() [][]string {
	var cmds [][]string
	if runtime.GOOS == "darwin" {
		cmds = append(cmds, []string{"afplay"})
	}
	return append(cmds,
		[]string{"ffplay", "-nodisp", "-autoexit", "-hide_banner", "-loglevel", "quiet"},
		[]string{"mpv", "--no-video", "--quiet"},
		[]string{"cvlc", "--play-and-exit", "--quiet"},
	)
}

// NewPlayer creates a player; nil commands means DefaultCommands
func NewPlayer(commands [][]string, logger *util.Logger) *Player {
	if commands == nil {
		commands = DefaultCommands()
	}
	return &Player{commands: commands, logger: util.OrDefault(logger)}
}

// Play stops any running preview and starts path
func (p *Player) Play(path string) error {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, command := range p.commands {
		if len(command) == 0 {
			continue
		}
		if _, err := exec.LookPath(command[0]); err != nil {
			continue
		}
		args := append(append([]string{}, command[1:]...), path)
		cmd := exec.Command(command[0], args...)
		if err := cmd.Start(); err != nil {
			p.logger.Warnf("Failed to start player %s: %v", command[0], err)
			continue
		}

		done := make(chan struct{})
		go func() {
			cmd.Wait()
			close(done)
		}()
		p.cmd, p.done = cmd, done
		p.logger.Debugf("Previewing %s with %s", path, command[0])
		return nil
	}
	return fmt.Errorf("no supported audio player found: %w", util.ErrNotFound)
}

// Playing reports whether a preview process is still running
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop terminates the preview and waits for it to exit. A player that
// ignores SIGTERM is killed after stopGrace.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return
	}
	cmd, done := p.cmd, p.done
	p.cmd, p.done = nil, nil

	select {
	case <-done:
		return
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(stopGrace):
		cmd.Process.Kill()
		<-done
	}
}
