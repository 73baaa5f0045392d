package features

import (
	"Go2NetSentinel/internal/model"
)

// Column names of the feature schema.
const (
	ColDuration        = "duration"
	ColSrcBytes        = "src_bytes"
	ColDstBytes        = "dst_bytes"
	ColCount           = "count"
	ColSrvCount        = "srv_count"
	ColSameSrvRate     = "same_srv_rate"
	ColDstHostCount    = "dst_host_count"
	ColDstHostSrvCount = "dst_host_srv_count"
	ColProtocolType    = "protocol_type"
	ColService         = "service"
	ColFlag            = "flag"
)

// NumericColumns and CategoricalColumns list the schema in its canonical order.
var (
	NumericColumns = []string{
		ColDuration, ColSrcBytes, ColDstBytes, ColCount, ColSrvCount,
		ColSameSrvRate, ColDstHostCount, ColDstHostSrvCount,
	}
	CategoricalColumns = []string{ColProtocolType, ColService, ColFlag}
)

// FeatureVector is the fixed-schema representation of one flow.
type FeatureVector struct {
	Duration        float64 `json:"duration"`
	SrcBytes        float64 `json:"src_bytes"`
	DstBytes        float64 `json:"dst_bytes"`
	Count           float64 `json:"count"`
	SrvCount        float64 `json:"srv_count"`
	SameSrvRate     float64 `json:"same_srv_rate"`
	DstHostCount    float64 `json:"dst_host_count"`
	DstHostSrvCount float64 `json:"dst_host_srv_count"`
	ProtocolType    string  `json:"protocol_type"`
	Service         string  `json:"service"`
	Flag            string  `json:"flag"`
}

// Numeric returns the value of a numeric column.
func (v FeatureVector) Numeric(col string) (float64, bool) {
	switch col {
	case ColDuration:
		return v.Duration, true
	case ColSrcBytes:
		return v.SrcBytes, true
	case ColDstBytes:
		return v.DstBytes, true
	case ColCount:
		return v.Count, true
	case ColSrvCount:
		return v.SrvCount, true
	case ColSameSrvRate:
		return v.SameSrvRate, true
	case ColDstHostCount:
		return v.DstHostCount, true
	case ColDstHostSrvCount:
		return v.DstHostSrvCount, true
	}
	return 0, false
}

// Categorical returns the value of a categorical column.
func (v FeatureVector) Categorical(col string) (string, bool) {
	switch col {
	case ColProtocolType:
		return v.ProtocolType, true
	case ColService:
		return v.Service, true
	case ColFlag:
		return v.Flag, true
	}
	return "", false
}

type hostService struct {
	host    string
	service string
}

// WindowAggregates holds the snapshot-wide statistics computed before any flow is encoded.
type WindowAggregates struct {
	dstHosts        map[string]struct{}
	dstHostServices map[hostService]struct{}
	serviceCount    map[string]int
}

// ComputeAggregates makes one pass over the snapshot.
func ComputeAggregates(snapshot model.WindowSnapshot) WindowAggregates {
	agg := WindowAggregates{
		dstHosts:        make(map[string]struct{}),
		dstHostServices: make(map[hostService]struct{}),
		serviceCount:    make(map[string]int),
	}
	for _, key := range snapshot.Keys() {
		service := ClassifyService(int(key.DstPort))
		agg.dstHosts[key.DstIP] = struct{}{}
		agg.dstHostServices[hostService{key.DstIP, service}] = struct{}{}
		agg.serviceCount[service]++
	}
	return agg
}

// DstHostCount is the number of distinct destination addresses.
func (a WindowAggregates) DstHostCount() int { return len(a.dstHosts) }

// DstHostServiceCount is the number of distinct (destination, service) pairs.
func (a WindowAggregates) DstHostServiceCount() int { return len(a.dstHostServices) }

// ServiceCount is the number of flows in the window whose service is service.
func (a WindowAggregates) ServiceCount(service string) int { return a.serviceCount[service] }

// Encode maps one flow of a snapshot to its feature vector. It is pure: the same
// inputs always give the same vector.
func Encode(snapshot model.WindowSnapshot, key model.FlowKey, rec model.FlowRecord, agg WindowAggregates) FeatureVector {
	var inbound uint64
	if rev, ok := snapshot.Lookup(key.Reverse()); ok {
		inbound = rev.Bytes
	}

	service := ClassifyService(int(key.DstPort))

	dstHostCount := max(1, agg.DstHostCount())
	dstHostSrvCount := max(1, agg.DstHostServiceCount())
	srvCount := max(1, agg.ServiceCount(service))


	return FeatureVector{
		Duration:        rec.Duration().Seconds(),
		SrcBytes:        float64(rec.Bytes),
		DstBytes:        float64(inbound),
		Count:           float64(rec.Packets),
		SrvCount:        float64(srvCount),
		SameSrvRate:     float64(srvCount) / float64(dstHostCount),
		DstHostCount:    float64(dstHostCount),
		DstHostSrvCount: float64(dstHostSrvCount),
		ProtocolType:    ClassifyProtocol(key.Protocol),
		Service:         service,
		Flag:            ClassifyFlags(rec.LastFlags),
	}
}

// FromNetEvent maps a single raw event, which has no window around it, to a feature vector.
func FromNetEvent(ev model.NetEvent) FeatureVector {
	flags := ""
	if ev.Flags != nil {
		flags = *ev.Flags
	}
	return FeatureVector{
		Duration:        0.1,
		SrcBytes:        float64(ev.BytesOut),
		DstBytes:        float64(ev.BytesIn),
		Count:           1,
		SrvCount:        1,
		SameSrvRate:     1,
		DstHostCount:    1,
		DstHostSrvCount: 1,
		ProtocolType:    ClassifyProtocol(ev.Protocol),
		Service:         ServiceOther,
		Flag:            ClassifyFlags(flags),
	}
}

// Info projects a flow onto the fields streamed to subscribers. Posted feature
// records carry no addresses and pass the zero key.
func Info(key model.FlowKey, v FeatureVector) model.EventInfo {
	flag := v.Flag
	return model.EventInfo{
		Src:      key.SrcIP,
		Dst:      key.DstIP,
		Proto:    v.ProtocolType,
		BytesIn:  int64(v.DstBytes),
		BytesOut: int64(v.SrcBytes),
		Flag:     &flag,
	}
}
