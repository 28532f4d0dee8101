package psdemux

// PS stream-type constants. See spec §6.
const (
	StreamTypeMPEG1Video  = 0x01
	StreamTypeMPEG2Video  = 0x02
	StreamTypeMPEG1Audio  = 0x03
	StreamTypeMPEG2Audio  = 0x04
	StreamTypePrivateSect = 0x05
	StreamTypePrivateData = 0x06
	StreamTypeAAC         = 0x0F
	StreamTypeMPEG4       = 0x10
	StreamTypeH264        = 0x1B
	StreamTypeHEVC        = 0x24
	StreamTypeCAVS        = 0x42
	StreamTypeSAVC        = 0x80
	StreamTypeAC3         = 0x81
	StreamTypeG711        = 0x90
	StreamTypeG711Mu      = 0x91
	StreamTypeG7221       = 0x92
	StreamTypeG7231       = 0x93
	StreamTypeG726        = 0x96
	StreamTypeG7291       = 0x99
	StreamTypeSVAC        = 0x9B
	StreamTypePCM         = 0x9C
)

var streamTypeNames = map[byte]string{
	StreamTypeMPEG1Video:  "mpeg1-video",
	StreamTypeMPEG2Video:  "mpeg2-video",
	StreamTypeMPEG1Audio:  "mpeg1-audio",
	StreamTypeMPEG2Audio:  "mpeg2-audio",
	StreamTypePrivateSect: "private-section",
	StreamTypePrivateData: "private-data",
	StreamTypeAAC:         "aac",
	StreamTypeMPEG4:       "mpeg4",
	StreamTypeH264:        "h264",
	StreamTypeHEVC:        "hevc",
	StreamTypeCAVS:        "cavs",
	StreamTypeSAVC:        "savc",
	StreamTypeAC3:         "ac3",
	StreamTypeG711:        "g711",
	StreamTypeG711Mu:      "g711-mulaw",
	StreamTypeG7221:       "g722.1",
	StreamTypeG7231:       "g723.1",
	StreamTypeG726:        "g726",
	StreamTypeG7291:       "g729.1",
	StreamTypeSVAC:        "svac",
	StreamTypePCM:         "pcm",
}

// StreamTypeName returns a human-readable name for a PS stream-type byte,
// for diagnostic logging. Mirrors the original worker's
// GetPSMapTypeString.
func StreamTypeName(streamType byte) string {
	if name, ok := streamTypeNames[streamType]; ok {
		return name
	}
	return "unknown"
}
