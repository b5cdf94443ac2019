package camera

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readMillidegrees reads a hwmon/thermal style sysfs file holding an integer
// temperature in thousandths of a degree Celsius.
func readMillidegrees(path string) (float64, error) {
	if path == "" {
		return 0, fmt.Errorf("no temperature source configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, wrapRuntime("read temperature", err)
	}
	raw := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", raw, err)
	}
	return float64(value) / 1000, nil
}
