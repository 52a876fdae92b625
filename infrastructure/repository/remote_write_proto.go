package repository

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// encodeWriteRequest encodes a single-sample Prometheus WriteRequest into
// protobuf wire format. Labels are emitted in sorted order so the payload is
// deterministic.
func encodeWriteRequest(metricName string, value float64, labels map[string]string, timestamp int64) []byte {
	var buf bytes.Buffer

	allLabels := make(map[string]string, len(labels)+1)
	allLabels["__name__"] = metricName
	for k, v := range labels {
		allLabels[k] = v
	}

	// Field 1: timeseries (repeated, length-delimited)
	timeseriesData := encodeTimeSeries(allLabels, value, timestamp)
	writeFieldWithData(&buf, 1, timeseriesData)

	return buf.Bytes()
}

func encodeTimeSeries(labels map[string]string, value float64, timestamp int64) []byte {
	var buf bytes.Buffer

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	// Field 1: labels (repeated)
	for _, name := range names {
		writeFieldWithData(&buf, 1, encodeLabel(name, labels[name]))
	}

	// Field 2: samples (repeated)
	writeFieldWithData(&buf, 2, encodeSample(value, timestamp))

	return buf.Bytes()
}

func encodeLabel(name, value string) []byte {
	var buf bytes.Buffer
	writeString(&buf, 1, name)
	writeString(&buf, 2, value)
	return buf.Bytes()
}

func encodeSample(value float64, timestamp int64) []byte {
	var buf bytes.Buffer

	// Field 1: value (double, fixed64)
	writeFixed64(&buf, 1, math.Float64bits(value))

	// Field 2: timestamp (int64, varint)
	writeVarint(&buf, 2, timestamp)

	return buf.Bytes()
}

func writeFieldWithData(buf *bytes.Buffer, fieldNum int, data []byte) {
	key := (fieldNum << 3) | 2 // wire type 2, length-delimited
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(len(data)))
	buf.Write(data)
}

func writeString(buf *bytes.Buffer, fieldNum int, s string) {
	key := (fieldNum << 3) | 2
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeFixed64(buf *bytes.Buffer, fieldNum int, v uint64) {
	key := (fieldNum << 3) | 1 // wire type 1, fixed64
	writeRawVarint(buf, uint64(key))
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeVarint(buf *bytes.Buffer, fieldNum int, v int64) {
	key := fieldNum << 3 // wire type 0, varint
	writeRawVarint(buf, uint64(key))
	writeRawVarint(buf, uint64(v))
}

func writeRawVarint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}
