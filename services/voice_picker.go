package services

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"

	"github.com/prepmate/backend/models"
)

// Adam
const defaultVoiceID = "pNInz6obpgDQGcFmaJgB"

// Stock ElevenLabs voice IDs for each gender
var femaleVoices = []string{
	"EXAVITQu4vr4xnSDxMaL", // Rachel
	"21m00Tcm4TlvDq8ikWAM", // Domi
	"AZnzlk1XvdvUeBnXmlld", // Bella
	"ErXwobaYiN019PkySvjV", // Elli
	"MF3mGyEYCl7XYWbV9V6O", // Dorothy
}

var maleVoices = []string{
	"pNInz6obpgDQGcFmaJgB", // Adam
	"TxGEqnHWrfWFTfGW9XjX", // Antoni
	"VR6AewLTigWG4xSOukaG", // Josh
	"yoZ06aMxZJJ28mfd3POQ", // Arnold
	"bVMeCyTHy58xNoL34h3p", // Clyde
}

// PickDeterministicVoice returns a stock voice ID derived from name and gender,
// so the same interviewer always sounds the same
func PickDeterministicVoice(name, gender string) string {
	var pool []string
	switch strings.ToLower(gender) {
	case "female":
		pool = femaleVoices
	case "male":
		pool = maleVoices
	default:
		pool = make([]string, 0, len(femaleVoices)+len(maleVoices))
		pool = append(pool, femaleVoices...)
		pool = append(pool, maleVoices...)
	}
	h := sha1.Sum([]byte(strings.ToLower(name)))
	idx := binary.BigEndian.Uint16(h[:]) % uint16(len(pool))
	return pool[idx]
}

// voiceForInterviewer picks the session voice; sessions without an interviewer use fallback
func voiceForInterviewer(iv *models.Interviewer, fallback string) string {
	if iv == nil {
		if fallback == "" {
			return defaultVoiceID
		}
		return fallback
	}
	return PickDeterministicVoice(iv.Name, iv.Gender)
}
