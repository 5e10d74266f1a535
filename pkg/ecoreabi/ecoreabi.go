// Package ecoreabi exposes the stable C-calling-convention vtable a MetaROM
// host runtime uses to drive the emulator core across a shared-library
// boundary. Build cmd/mromcore with -buildmode=c-shared to produce the .mrom
// object; the host discovers the table through the exported
// mrom_ecore_init symbol.
package ecoreabi

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct ECoreInfo {
	uint32_t abi_version;
	const char *core_id;
	const char *label;
	const char **mime_types;
	uint32_t save_state_version;
} ECoreInfo;

typedef struct VideoFrame {
	const unsigned char *data;
	unsigned int width;
	unsigned int height;
	unsigned int pitch;
	uint32_t pixel_format;
} VideoFrame;

typedef struct AudioFrame {
	const int16_t *samples;
	unsigned int sample_count;
	unsigned int sample_rate_hz;
} AudioFrame;

typedef struct EcoreVtable {
	ECoreInfo *(*ecore_info)(void);
	int (*load_rom)(unsigned char *data, unsigned int len);
	void (*unload_rom)(void);
	void (*run_frame)(VideoFrame *video_out, AudioFrame *audio_out);
	unsigned int (*save_state)(unsigned char *buf, unsigned int buf_len);
	int (*load_state)(unsigned char *buf, unsigned int buf_len);
	void (*set_input)(unsigned int player, uint32_t input_word);
	int (*configure)(char *json_cfg);
	char *(*diagnostics)(void);
} EcoreVtable;

extern ECoreInfo *mromEcoreInfo(void);
extern int mromLoadRom(unsigned char *data, unsigned int len);
extern void mromUnloadRom(void);
extern void mromRunFrame(VideoFrame *video_out, AudioFrame *audio_out);
extern unsigned int mromSaveState(unsigned char *buf, unsigned int buf_len);
extern int mromLoadState(unsigned char *buf, unsigned int buf_len);
extern void mromSetInput(unsigned int player, uint32_t input_word);
extern int mromConfigure(char *json_cfg);
extern char *mromDiagnostics(void);

static EcoreVtable mrom_vtable = {
	mromEcoreInfo,
	mromLoadRom,
	mromUnloadRom,
	mromRunFrame,
	mromSaveState,
	mromLoadState,
	mromSetInput,
	mromConfigure,
	mromDiagnostics,
};

static EcoreVtable *mrom_vtable_ptr(void) { return &mrom_vtable; }

static const char *mrom_mime_types[] = {
	"application/x-gameboy-rom",
	"application/x-gameboy-color-rom",
	0,
};

static ECoreInfo mrom_info = {
	1, // MROM_ABI_VERSION
	"gb_dmg",
	"MetaROM GB/GBC core",
	mrom_mime_types,
	1,
};

static ECoreInfo *mrom_info_ptr(void) { return &mrom_info; }
*/
import "C"

import (
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/EvezArt/metarom-go/internal/emu"
)

// ABIVersion mirrors the abi_version field in the info block.
const ABIVersion = 1

// FourCCRGB2 tags the 24-bit RGB framebuffer format ("RGB2").
const FourCCRGB2 = 0x32424752

var (
	mu      sync.Mutex
	machine *emu.Machine
	cfg     emu.Config

	videoBuf *C.uchar // C-owned copy of the last frame, 160*144*3
	audioBuf *C.int16_t
	diagBuf  *C.char

	frameIdx uint64
)

const (
	videoBytes  = 160 * 144 * 3
	audioFrames = 8192 // per run_frame drain cap, stereo pairs
	audioInts   = audioFrames * 2
)

//export mromEcoreInfo
func mromEcoreInfo() *C.ECoreInfo {
	return C.mrom_info_ptr()
}

//export mromLoadRom
func mromLoadRom(data *C.uchar, length C.uint) C.int {
	mu.Lock()
	defer mu.Unlock()
	rom := C.GoBytes(unsafe.Pointer(data), C.int(length))
	m, err := emu.NewFromROM(rom, cfg)
	if err != nil {
		return 1
	}
	machine = m
	frameIdx = 0
	if videoBuf == nil {
		videoBuf = (*C.uchar)(C.malloc(videoBytes))
	}
	if audioBuf == nil {
		audioBuf = (*C.int16_t)(C.malloc(audioInts * 2))
	}
	return 0
}

//export mromUnloadRom
func mromUnloadRom() {
	mu.Lock()
	defer mu.Unlock()
	machine = nil
	if videoBuf != nil {
		C.free(unsafe.Pointer(videoBuf))
		videoBuf = nil
	}
	if audioBuf != nil {
		C.free(unsafe.Pointer(audioBuf))
		audioBuf = nil
	}
	if diagBuf != nil {
		C.free(unsafe.Pointer(diagBuf))
		diagBuf = nil
	}
}

//export mromRunFrame
func mromRunFrame(video *C.VideoFrame, audio *C.AudioFrame) {
	mu.Lock()
	defer mu.Unlock()
	if machine == nil {
		return
	}
	machine.RunFrame()
	frameIdx++

	if video != nil && videoBuf != nil {
		rgb := machine.FramebufferRGB()
		dst := unsafe.Slice((*byte)(unsafe.Pointer(videoBuf)), videoBytes)
		copy(dst, rgb)
		video.data = videoBuf
		video.width = 160
		video.height = 144
		video.pitch = 160 * 3
		video.pixel_format = FourCCRGB2
	}
	if audio != nil && audioBuf != nil {
		samples := machine.Bus().APU().Drain(audioFrames)
		dst := unsafe.Slice((*int16)(unsafe.Pointer(audioBuf)), audioInts)
		copy(dst, samples)
		audio.samples = audioBuf
		audio.sample_count = C.uint(len(samples) / 2)
		audio.sample_rate_hz = C.uint(machine.Bus().APU().SampleRate())
	}
}

//export mromSaveState
func mromSaveState(buf *C.uchar, bufLen C.uint) C.uint {
	mu.Lock()
	defer mu.Unlock()
	if machine == nil {
		return 0
	}
	state, err := machine.SaveState()
	if err != nil {
		return 0
	}
	if buf == nil {
		return C.uint(len(state))
	}
	n := len(state)
	if int(bufLen) < n {
		n = int(bufLen)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), n)
	copy(dst, state[:n])
	return C.uint(n)
}

//export mromLoadState
func mromLoadState(buf *C.uchar, bufLen C.uint) C.int {
	mu.Lock()
	defer mu.Unlock()
	if machine == nil || buf == nil {
		return 1
	}
	state := C.GoBytes(unsafe.Pointer(buf), C.int(bufLen))
	if err := machine.LoadState(state); err != nil {
		return 1
	}
	return 0
}

//export mromSetInput
func mromSetInput(player C.uint, word C.uint32_t) {
	mu.Lock()
	defer mu.Unlock()
	if machine == nil || player != 0 {
		return
	}
	machine.SetButtons(byte(word))
}

//export mromConfigure
func mromConfigure(jsonCfg *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	if jsonCfg == nil {
		return 1
	}
	var c struct {
		SampleRate int `json:"sample_rate"`
	}
	if err := json.Unmarshal([]byte(C.GoString(jsonCfg)), &c); err != nil {
		return 1
	}
	if c.SampleRate > 0 {
		cfg.SampleRate = c.SampleRate
	}
	return 0
}

//export mromDiagnostics
func mromDiagnostics() *C.char {
	mu.Lock()
	defer mu.Unlock()
	var out []byte
	if machine == nil {
		out = []byte(`{"loaded":false}`)
	} else {
		out, _ = json.Marshal(map[string]interface{}{
			"loaded":   true,
			"title":    machine.Cart.Title,
			"mbc":      machine.Cart.Kind.String(),
			"frames":   frameIdx,
			"t_cycles": machine.TCycles(),
			"summary":  machine.StateSummary(),
		})
	}
	if diagBuf != nil {
		C.free(unsafe.Pointer(diagBuf))
	}
	diagBuf = C.CString(string(out))
	return diagBuf
}

//export mrom_ecore_init
func mrom_ecore_init() *C.EcoreVtable {
	return C.mrom_vtable_ptr()
}
