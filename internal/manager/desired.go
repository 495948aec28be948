package manager

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// desired computes the entity descriptors one category should have
// registered right now, from the latest snapshots and the compiled
// rule sets. Caller holds mu. Before the first successful poll of a
// category the desired set is empty: entities are only ever created
// from observed data.
func (st *deviceState) desired(cat models.PollCategory) []*models.EntityDescriptor {
	switch cat {
	case models.CategoryInterfaces:
		return st.desiredInterfaces()
	case models.CategoryDiagnostics:
		return st.desiredDiagnostics()
	case models.CategoryBandwidth:
		return st.desiredBandwidth()
	case models.CategoryEnvironmental:
		return st.desiredEnvironment()
	case models.CategoryPoE:
		return st.desiredPoE()
	}
	return nil
}

func (st *deviceState) key(cat models.PollCategory, kind models.EntityKind, ref string) models.EntityKey {
	return models.EntityKey{
		DeviceID: st.dev.ID,
		Category: cat,
		Kind:     kind,
		Mode:     st.dev.CategoryConfigOrDefault(cat).Mode,
		Ref:      ref,
	}
}

func (st *deviceState) available(cat models.PollCategory) bool {
	return !st.unavailable[cat]
}

func (st *deviceState) desiredInterfaces() []*models.EntityDescriptor {
	avail := st.available(models.CategoryInterfaces)
	var out []*models.EntityDescriptor
	for _, a := range st.ifaces {
		if !st.ifaceRules.Visible(a.RawName, a.Candidate) {
			continue
		}
		rec := a.Record
		attrs := map[string]string{
			"port_type": string(rec.PortType),
		}
		setAttr(attrs, "descr", rec.Descr)
		setAttr(attrs, "alias", rec.Alias)
		if rec.AdminStatus.Known {
			attrs["admin_status"] = models.AdminStatusText(rec.AdminStatus.V)
		}
		if rec.OperStatus.Known {
			attrs["oper_status"] = models.OperStatusText(rec.OperStatus.V)
		}
		if rec.SpeedBPS.Known {
			attrs["speed_bps"] = strconv.FormatUint(rec.SpeedBPS.V, 10)
		}
		if rec.PVID.Known {
			attrs["pvid"] = strconv.Itoa(rec.PVID.V)
		}
		if rec.Trunk {
			attrs["trunk"] = "true"
		}
		setAttr(attrs, "vlans_allowed", joinInts(rec.AllowedVLANs))
		setAttr(attrs, "vlans_tagged", joinInts(rec.TaggedVLANs))
		setAttr(attrs, "vlans_untagged", joinInts(rec.UntaggedVLANs))
		setAttr(attrs, "ipv4", rec.IPv4CIDR())

		out = append(out, &models.EntityDescriptor{
			Key:        st.key(models.CategoryInterfaces, models.KindInterface, strconv.Itoa(rec.IfIndex)),
			Name:       st.ifaceRules.Rename(a.RawName),
			Attributes: attrs,
			Available:  avail,
		})
	}
	return out
}

func (st *deviceState) desiredDiagnostics() []*models.EntityDescriptor {
	if st.diag == nil {
		return nil
	}
	avail := st.available(models.CategoryDiagnostics)
	mode := st.dev.CategoryConfigOrDefault(models.CategoryDiagnostics).Mode

	if mode == models.ModeSensors {
		var out []*models.EntityDescriptor
		if st.diag.UptimeTicks.Known {
			out = append(out, st.sensor(models.CategoryDiagnostics, "uptime_seconds",
				st.dev.Name+" Uptime",
				strconv.FormatFloat(st.diag.Uptime().Seconds(), 'f', 0, 64), avail))
		}
		return out
	}

	attrs := map[string]string{}
	setAttr(attrs, "sys_name", st.diag.SysName)
	setAttr(attrs, "sys_descr", st.diag.SysDescr)
	setAttr(attrs, "manufacturer", st.diag.Manufacturer)
	setAttr(attrs, "model", st.diag.Model)
	setAttr(attrs, "firmware", st.diag.Firmware)
	attrs["vendor"] = string(st.diag.Vendor)
	if st.diag.UptimeTicks.Known {
		attrs["uptime_seconds"] = strconv.FormatFloat(st.diag.Uptime().Seconds(), 'f', 0, 64)
	}

	return []*models.EntityDescriptor{{
		Key:        st.key(models.CategoryDiagnostics, models.KindAggregate, ""),
		Name:       st.dev.Name + " Diagnostics",
		Attributes: attrs,
		Available:  avail,
	}}
}

// desiredBandwidth selects ports from the vendor-eligible baseline
// with the bandwidth rule lists. Interface include rules play no part
// here.
func (st *deviceState) desiredBandwidth() []*models.EntityDescriptor {
	if st.bw == nil {
		return nil
	}
	avail := st.available(models.CategoryBandwidth)
	mode := st.dev.CategoryConfigOrDefault(models.CategoryBandwidth).Mode

	type port struct {
		ifIndex int
		name    string
		sample  models.BandwidthSample
	}
	var ports []port
	for _, a := range st.ifaces {
		if !st.bwRules.Visible(a.RawName, a.Candidate) {
			continue
		}
		sample, ok := st.bw.Ports[a.Record.IfIndex]
		if !ok {
			continue
		}
		ports = append(ports, port{
			ifIndex: a.Record.IfIndex,
			name:    st.ifaceRules.Rename(a.RawName),
			sample:  sample,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].ifIndex < ports[j].ifIndex })

	if mode == models.ModeSensors {
		var out []*models.EntityDescriptor
		for _, p := range ports {
			// A rate needs two polls; no entity until the first
			// valid sample exists.
			if p.sample.RxBPS.Known {
				out = append(out, st.sensor(models.CategoryBandwidth,
					fmt.Sprintf("rx_bps_%d", p.ifIndex),
					p.name+" RX",
					formatFloat(p.sample.RxBPS.V), avail))
			}
			if p.sample.TxBPS.Known {
				out = append(out, st.sensor(models.CategoryBandwidth,
					fmt.Sprintf("tx_bps_%d", p.ifIndex),
					p.name+" TX",
					formatFloat(p.sample.TxBPS.V), avail))
			}
		}
		return out
	}

	if len(ports) == 0 {
		return nil
	}
	attrs := map[string]string{}
	for _, p := range ports {
		if p.sample.RxBPS.Known {
			attrs[fmt.Sprintf("rx_bps_%d", p.ifIndex)] = formatFloat(p.sample.RxBPS.V)
		}
		if p.sample.TxBPS.Known {
			attrs[fmt.Sprintf("tx_bps_%d", p.ifIndex)] = formatFloat(p.sample.TxBPS.V)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return []*models.EntityDescriptor{{
		Key:        st.key(models.CategoryBandwidth, models.KindAggregate, ""),
		Name:       st.dev.Name + " Bandwidth",
		Attributes: attrs,
		Available:  avail,
	}}
}

func (st *deviceState) desiredEnvironment() []*models.EntityDescriptor {
	if st.env == nil {
		return nil
	}
	avail := st.available(models.CategoryEnvironmental)
	mode := st.dev.CategoryConfigOrDefault(models.CategoryEnvironmental).Mode
	env := st.env

	type metric struct {
		ref, label, value string
	}
	var metrics []metric
	addFloat := func(ref, label string, v models.OptFloat) {
		if v.Known {
			metrics = append(metrics, metric{ref, label, formatFloat(v.V)})
		}
	}
	addInt := func(ref, label string, v models.OptInt) {
		if v.Known {
			metrics = append(metrics, metric{ref, label, strconv.Itoa(v.V)})
		}
	}

	addFloat("cpu_5s", "CPU 5s", env.CPU5s)
	addFloat("cpu_60s", "CPU 60s", env.CPU60s)
	addFloat("cpu_300s", "CPU 300s", env.CPU300s)
	addInt("mem_total_kb", "Memory Total", env.MemTotalKB)
	addInt("mem_free_kb", "Memory Free", env.MemFreeKB)
	addInt("unit_temp_c", "Unit Temperature", env.UnitTempC)
	addFloat("power_mw", "Power Draw", env.PowerMWTotal)
	for _, id := range sortedKeys(env.FanRPM) {
		metrics = append(metrics, metric{
			fmt.Sprintf("fan_%d_rpm", id), fmt.Sprintf("Fan %d RPM", id),
			strconv.Itoa(env.FanRPM[id])})
	}
	for _, id := range sortedKeys(env.FanStatus) {
		metrics = append(metrics, metric{
			fmt.Sprintf("fan_%d_status", id), fmt.Sprintf("Fan %d Status", id),
			strconv.Itoa(env.FanStatus[id])})
	}
	for _, id := range sortedKeys(env.PSUStatus) {
		metrics = append(metrics, metric{
			fmt.Sprintf("psu_%d_status", id), fmt.Sprintf("PSU %d Status", id),
			strconv.Itoa(env.PSUStatus[id])})
	}
	for _, id := range sortedKeys(env.TempsC) {
		metrics = append(metrics, metric{
			fmt.Sprintf("temp_%d_c", id), fmt.Sprintf("Temperature %d", id),
			strconv.Itoa(env.TempsC[id])})
	}

	if len(metrics) == 0 {
		return nil
	}

	if mode == models.ModeSensors {
		out := make([]*models.EntityDescriptor, 0, len(metrics))
		for _, mt := range metrics {
			out = append(out, st.sensor(models.CategoryEnvironmental, mt.ref,
				st.dev.Name+" "+mt.label, mt.value, avail))
		}
		return out
	}

	attrs := make(map[string]string, len(metrics))
	for _, mt := range metrics {
		attrs[mt.ref] = mt.value
	}
	return []*models.EntityDescriptor{{
		Key:        st.key(models.CategoryEnvironmental, models.KindAggregate, ""),
		Name:       st.dev.Name + " Environment",
		Attributes: attrs,
		Available:  avail,
	}}
}

func (st *deviceState) desiredPoE() []*models.EntityDescriptor {
	if st.poe == nil || !st.poe.Supported() {
		return nil
	}
	avail := st.available(models.CategoryPoE)
	mode := st.dev.CategoryConfigOrDefault(models.CategoryPoE).Mode
	poe := st.poe

	type metric struct {
		ref, label, value string
	}
	var metrics []metric
	addFloat := func(ref, label string, v models.OptFloat) {
		if v.Known {
			metrics = append(metrics, metric{ref, label, formatFloat(v.V)})
		}
	}
	addFloat("budget_w", "PoE Budget", poe.BudgetW)
	addFloat("used_w", "PoE Used", poe.UsedW)
	addFloat("available_w", "PoE Available", poe.AvailableW)
	if poe.Health.Known {
		metrics = append(metrics, metric{"health", "PoE Health", models.PoEHealthText(poe.Health.V)})
	}
	for _, ifIndex := range sortedFloatKeys(poe.PortPowerMW) {
		metrics = append(metrics, metric{
			fmt.Sprintf("port_power_mw_%d", ifIndex),
			fmt.Sprintf("Port %d PoE Power", ifIndex),
			formatFloat(poe.PortPowerMW[ifIndex])})
	}
	if len(metrics) == 0 {
		return nil
	}

	if mode == models.ModeSensors {
		out := make([]*models.EntityDescriptor, 0, len(metrics))
		for _, mt := range metrics {
			out = append(out, st.sensor(models.CategoryPoE, mt.ref,
				st.dev.Name+" "+mt.label, mt.value, avail))
		}
		return out
	}

	attrs := make(map[string]string, len(metrics))
	for _, mt := range metrics {
		attrs[mt.ref] = mt.value
	}
	return []*models.EntityDescriptor{{
		Key:        st.key(models.CategoryPoE, models.KindAggregate, ""),
		Name:       st.dev.Name + " PoE",
		Attributes: attrs,
		Available:  avail,
	}}
}

func (st *deviceState) sensor(cat models.PollCategory, ref, name, value string, avail bool) *models.EntityDescriptor {
	return &models.EntityDescriptor{
		Key:        st.key(cat, models.KindSensor, ref),
		Name:       name,
		Attributes: map[string]string{"value": value},
		Available:  avail,
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}

func joinInts(vals []int) string {
	if len(vals) == 0 {
		return ""
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedFloatKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
