package topology

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const SysfsBasePath = "/sys/devices/system/cpu"

type cpuInfo struct {
	id        int
	packageID int
	coreID    int
	siblings  []int
}

// ReadSysfs derives the socket/core/thread counts from the per-CPU topology
// files below base. Offline CPUs without a topology directory are skipped.
func ReadSysfs(base string) (Topology, error) {
	info, err := os.Stat(base)
	if err != nil {
		if os.IsPermission(err) {
			return Topology{}, err
		}
		return Topology{}, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if !info.IsDir() {
		return Topology{}, fmt.Errorf("%w: %s is not a directory", ErrTopologyUnavailable, base)
	}

	ids, err := listCPUs(base)
	if err != nil {
		return Topology{}, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if len(ids) == 0 {
		return Topology{}, fmt.Errorf("%w: no CPUs found", ErrTopologyUnavailable)
	}

	infos := make([]cpuInfo, 0, len(ids))
	for _, id := range ids {
		cpu, err := readCPUInfo(base, id)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if errors.Is(err, os.ErrPermission) {
				return Topology{}, err
			}
			return Topology{}, fmt.Errorf("%w: cpu%d: %v", ErrTopologyUnavailable, id, err)
		}
		infos = append(infos, cpu)
	}
	if len(infos) == 0 {
		return Topology{}, fmt.Errorf("%w: no CPU exposes topology information", ErrTopologyUnavailable)
	}

	type coreKey struct {
		pkg  int
		core int
	}
	packages := make(map[int]struct{})
	cores := make(map[coreKey]struct{})
	threads := 0
	for _, cpu := range infos {
		packages[cpu.packageID] = struct{}{}
		cores[coreKey{cpu.packageID, cpu.coreID}] = struct{}{}
		if len(cpu.siblings) > threads {
			threads = len(cpu.siblings)
		}
	}

	topo := Topology{
		Sockets:        len(packages),
		CoresPerSocket: len(cores) / len(packages),
		ThreadsPerCore: threads,
		TotalCores:     len(infos),
		Source:         SourceSysfs,
	}
	if err := Check(topo); err != nil {
		return Topology{}, err
	}
	return topo, nil
}

func readCPUInfo(base string, id int) (cpuInfo, error) {
	packageID, err := readIntFile(cpuPath(base, id, "physical_package_id"))
	if err != nil {
		return cpuInfo{}, err
	}
	coreID, err := readIntFile(cpuPath(base, id, "core_id"))
	if err != nil {
		return cpuInfo{}, err
	}
	siblings := []int{id}
	data, err := os.ReadFile(cpuPath(base, id, "thread_siblings_list"))
	if err == nil {
		parsed, err := ParseCPUList(string(data))
		if err != nil {
			return cpuInfo{}, err
		}
		if len(parsed) > 0 {
			siblings = parsed
		}
	} else if !os.IsNotExist(err) {
		return cpuInfo{}, err
	}
	return cpuInfo{id: id, packageID: packageID, coreID: coreID, siblings: siblings}, nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, errors.New("empty file")
	}
	return strconv.Atoi(value)
}

func listCPUs(base string) ([]int, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}

	cpus := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(entry.Name(), "cpu")
		if !ok || suffix == "" {
			continue
		}
		id, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		cpus = append(cpus, id)
	}

	sort.Ints(cpus)
	return cpus, nil
}

func cpuPath(base string, cpuID int, element string) string {
	return filepath.Join(base, "cpu"+strconv.Itoa(cpuID), "topology", element)
}
