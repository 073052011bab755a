package topology

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ParseLscpu reads the key/value form of `lscpu` output. The caller is
// expected to run lscpu with LC_ALL=C so the keys are not translated.
func ParseLscpu(output []byte) (Topology, error) {
	fields := map[string]*int{}
	topo := Topology{Source: SourceLscpu}
	fields["CPU(s)"] = &topo.TotalCores
	fields["Socket(s)"] = &topo.Sockets
	fields["Core(s) per socket"] = &topo.CoresPerSocket
	fields["Thread(s) per core"] = &topo.ThreadsPerCore

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		target, known := fields[strings.TrimSpace(key)]
		if !known {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Topology{}, fmt.Errorf("%w: lscpu %s: %v", ErrTopologyUnavailable, strings.TrimSpace(key), err)
		}
		*target = parsed
	}
	if err := scanner.Err(); err != nil {
		return Topology{}, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if err := Check(topo); err != nil {
		return Topology{}, err
	}
	return topo, nil
}
