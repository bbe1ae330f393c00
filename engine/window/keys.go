package window

// Key is a keyboard key. Values match GLFW key codes: printable keys use their ASCII value.
type Key uint32

const (
	KeySpace Key = 32
	Key0     Key = 48
	Key1     Key = 49
	Key2     Key = 50
	Key3     Key = 51
	KeyA     Key = 65
	KeyD     Key = 68
	KeyE     Key = 69
	KeyP     Key = 80
	KeyQ     Key = 81
	KeyR     Key = 82
	KeyS     Key = 83
	KeyW     Key = 87

	KeyEscape    Key = 256
	KeyBackspace Key = 259
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265
	KeyF5        Key = 294

	KeyLeftShift  Key = 340
	KeyRightShift Key = 344
)
