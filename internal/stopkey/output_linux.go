package stopkey

import "golang.org/x/sys/unix"

// keepOutputProcessing turns newline translation back on after MakeRaw so
// log lines written during the run still start at column zero.
func keepOutputProcessing(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Oflag |= unix.OPOST | unix.ONLCR
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
