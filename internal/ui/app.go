package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sqweek/dialog"

	"github.com/EvezArt/metarom-go/internal/bus"
	"github.com/EvezArt/metarom-go/internal/emu"
)

// Config carries window options.
type Config struct {
	Title string
	Scale int
}

// App runs a Machine inside an ebiten window: one emulated frame per tick,
// keyboard mapped to the joypad, APU samples streamed into the audio player.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image
	rgb []byte

	paused bool
	fast   bool
	muted  bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine) *App {
	if cfg.Scale <= 0 {
		cfg.Scale = 3
	}
	title := cfg.Title
	if t := m.Cart.Title; t != "" {
		title = fmt.Sprintf("%s - [%s]", cfg.Title, t)
	}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{
		cfg:      cfg,
		m:        m,
		tex:      ebiten.NewImage(160, 144),
		rgb:      make([]byte, 160*144*4),
		audioCtx: audio.NewContext(m.Bus().APU().SampleRate()),
	}
}

// PickROM shows a file-open dialog for a cartridge image.
func PickROM(startDir string) (string, error) {
	b := dialog.File().Title("Open ROM")
	if startDir != "" {
		b = b.SetStartDir(startDir)
	}
	b = b.Filter("Game Boy ROMs", "gb", "gbc", "zip", "gz", "7z")
	return b.Load()
}

func (a *App) Run() error {
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	a.handleKeys()
	if a.audioPlayer == nil {
		src := &apuStream{m: a.m, muted: &a.muted}
		p, err := a.audioCtx.NewPlayer(src)
		if err == nil {
			p.SetBufferSize(40 * time.Millisecond)
			a.audioPlayer = p
			p.Play()
		}
	}
	if a.paused {
		return nil
	}
	frames := 1
	if a.fast {
		frames = 4
	}
	for i := 0; i < frames; i++ {
		a.m.RunFrame()
	}
	return nil
}

func (a *App) handleKeys() {
	var mask byte
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		mask |= bus.JoypRight
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		mask |= bus.JoypLeft
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		mask |= bus.JoypUp
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		mask |= bus.JoypDown
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		mask |= bus.JoypA
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		mask |= bus.JoypB
	}
	if ebiten.IsKeyPressed(ebiten.KeyBackspace) {
		mask |= bus.JoypSelectBtn
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		mask |= bus.JoypStart
	}
	a.m.SetButtons(mask)

	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.muted = !a.muted
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.saveState()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.loadState()
	}
}

func (a *App) statePath() string {
	p := a.m.ROMPath()
	if p == "" {
		return "quick.mrom.sav"
	}
	for _, ext := range []string{".gb", ".gbc", ".zip", ".gz", ".7z"} {
		if strings.HasSuffix(strings.ToLower(p), ext) {
			return p[:len(p)-len(ext)] + ".mrom.sav"
		}
	}
	return p + ".mrom.sav"
}

func (a *App) saveState() {
	data, err := a.m.SaveState()
	if err == nil {
		err = os.WriteFile(a.statePath(), data, 0o644)
	}
	if err != nil {
		a.toast("save failed: " + err.Error())
		return
	}
	a.toast("state saved")
}

func (a *App) loadState() {
	data, err := os.ReadFile(a.statePath())
	if err == nil {
		err = a.m.LoadState(data)
	}
	if err != nil {
		a.toast("load failed: " + err.Error())
		return
	}
	a.toast("state loaded")
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) Draw(screen *ebiten.Image) {
	src := a.m.FramebufferRGB()
	for i := 0; i < 160*144; i++ {
		a.rgb[i*4] = src[i*3]
		a.rgb[i*4+1] = src[i*3+1]
		a.rgb[i*4+2] = src[i*3+2]
		a.rgb[i*4+3] = 0xFF
	}
	a.tex.WritePixels(a.rgb)

	op := &ebiten.DrawImageOptions{}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op.GeoM.Scale(float64(sw)/160, float64(sh)/144)
	screen.DrawImage(a.tex, op)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrint(screen, a.toastMsg)
	}
}

func (a *App) Layout(w, h int) (int, int) {
	return 160 * a.cfg.Scale, 144 * a.cfg.Scale
}
