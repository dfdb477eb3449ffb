package tui

// Key bindings. Setup keys are plain letters; during the interview the text
// input owns printable keys, so actions sit on control chords.
const (
	KeyCtrlC = "ctrl+c"
	KeyQuit  = "q"
	KeyEsc   = "esc"
	KeyEnter = "enter"

	// Setup screen.
	KeyUp    = "up"
	KeyDown  = "down"
	KeyLeft  = "left"
	KeyRight = "right"
	KeyJ     = "j"
	KeyK     = "k"
	KeyH     = "h"
	KeyL     = "l"

	// Interview screen.
	KeyRecord = "ctrl+r"
	KeyNext   = "ctrl+n"
	KeyReplay = "ctrl+p"
	KeyCamera = "ctrl+t"
	KeyReset  = "ctrl+x"
	KeyPgUp   = "pgup"
	KeyPgDown = "pgdown"
)
