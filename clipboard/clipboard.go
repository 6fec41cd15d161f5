// Package clipboard copies the latest photo path so it can be pasted into a
// share dialog or chat.
package clipboard

import cb "github.com/atotto/clipboard"

// Available reports whether a clipboard backend (pbcopy, xclip, xsel,
// wl-copy, or the Windows API) was found.
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}
