//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/engine"
	"github.com/momentum/momentum/internal/geom"
	"github.com/momentum/momentum/internal/render/command"
)

var (
	app      *engine.App
	recorder *command.Recorder
)

func main() {
	recorder = command.NewRecorder()
	app = engine.New(engine.WithRenderer(recorder))

	// Create the engine API object
	momentumEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	momentumEngine.Set("pointerDown", js.FuncOf(pointerDown))
	momentumEngine.Set("pointerDownWithModifiers", js.FuncOf(pointerDownWithModifiers))
	momentumEngine.Set("createRect", js.FuncOf(createRect))
	momentumEngine.Set("createEllipse", js.FuncOf(createEllipse))
	momentumEngine.Set("createLine", js.FuncOf(createLine))
	momentumEngine.Set("moveStart", js.FuncOf(moveStart))
	momentumEngine.Set("moveUpdate", js.FuncOf(moveUpdate))
	momentumEngine.Set("moveEnd", js.FuncOf(moveEnd))
	momentumEngine.Set("scaleStart", js.FuncOf(scaleStart))
	momentumEngine.Set("scaleUpdate", js.FuncOf(scaleUpdate))
	momentumEngine.Set("scaleEnd", js.FuncOf(scaleEnd))
	momentumEngine.Set("setCanvasSize", js.FuncOf(setCanvasSize))
	momentumEngine.Set("setCanvasDpr", js.FuncOf(setCanvasDpr))
	momentumEngine.Set("loadDocument", js.FuncOf(loadDocument))
	momentumEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	momentumEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← engine) ---
	momentumEngine.Set("detectHandleHover", js.FuncOf(detectHandleHover))
	momentumEngine.Set("detectShapeHover", js.FuncOf(detectShapeHover))
	momentumEngine.Set("getDocumentJson", js.FuncOf(getDocumentJSON))
	momentumEngine.Set("getSelection", js.FuncOf(getSelection))
	momentumEngine.Set("isMoving", js.FuncOf(isMoving))
	momentumEngine.Set("isScaling", js.FuncOf(isScaling))

	// Register on global scope
	js.Global().Set("momentumEngine", momentumEngine)

	// Signal that WASM is ready
	js.Global().Set("momentumWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func floats(args []js.Value, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = args[i].Float()
	}
	return out, true
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

// --- Command Handlers ---

func pointerDown(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return errorResult("pointerDown(x, y)")
	}
	app.SendPointerDown(v[0], v[1])
	return nil
}

func pointerDownWithModifiers(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return errorResult("pointerDownWithModifiers(x, y, additive, range)")
	}
	additive := len(args) > 2 && args[2].Truthy()
	rangeSelect := len(args) > 3 && args[3].Truthy()
	res := app.SendPointerDownWithModifiers(v[0], v[1], additive, rangeSelect)

	var handle interface{}
	if res.ClickedHandle != nil {
		handle = int(*res.ClickedHandle)
	}
	return js.ValueOf(map[string]interface{}{
		"clickedHandleType": handle,
		"entitySelected":    res.EntitySelected,
	})
}

func createRect(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 4)
	if !ok {
		return errorResult("createRect(x, y, width, height)")
	}
	app.SendCreateRect(v[0], v[1], v[2], v[3])
	return nil
}

func createEllipse(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 4)
	if !ok {
		return errorResult("createEllipse(cx, cy, rx, ry)")
	}
	app.SendCreateEllipse(v[0], v[1], v[2], v[3])
	return nil
}

func createLine(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 4)
	if !ok {
		return errorResult("createLine(x1, y1, x2, y2)")
	}
	app.SendCreateLine(v[0], v[1], v[2], v[3])
	return nil
}

func moveStart(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return errorResult("moveStart(x, y)")
	}
	app.SendMoveStart(v[0], v[1])
	return nil
}

func moveUpdate(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return errorResult("moveUpdate(dx, dy)")
	}
	app.SendMoveUpdate(v[0], v[1])
	return nil
}

func moveEnd(this js.Value, args []js.Value) interface{} {
	app.SendMoveEnd()
	return nil
}

func scaleStart(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("scaleStart(handleType, x, y)")
	}
	h, err := geom.ParseHandleType(uint8(args[0].Int()))
	if err != nil {
		return errorResult(err.Error())
	}
	app.SendScaleStart(h, args[1].Float(), args[2].Float())
	return nil
}

func scaleUpdate(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return errorResult("scaleUpdate(dx, dy)")
	}
	app.SendScaleUpdate(v[0], v[1])
	return nil
}

func scaleEnd(this js.Value, args []js.Value) interface{} {
	app.SendScaleEnd()
	return nil
}

func setCanvasSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("setCanvasSize(width, height)")
	}
	app.SetCanvasSize(args[0].Int(), args[1].Int())
	return nil
}

func setCanvasDpr(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("setCanvasDpr(dpr)")
	}
	app.SetCanvasDPR(args[0].Float())
	return nil
}

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing document JSON")
	}
	doc := document.New()
	if err := json.Unmarshal([]byte(args[0].String()), doc); err != nil {
		return errorResult(err.Error())
	}
	app.LoadDocument(doc)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	app.LoadSampleDocument()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// tick runs one frame and returns its draw commands as JSON.
func tick(this js.Value, args []js.Value) interface{} {
	app.RunFrame()
	frame, err := recorder.FrameJSON()
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(frame)
}

// --- Query Handlers ---

func detectHandleHover(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return nil
	}
	if h, found := app.DetectHandle(v[0], v[1]); found {
		return js.ValueOf(int(h))
	}
	return nil
}

func detectShapeHover(this js.Value, args []js.Value) interface{} {
	v, ok := floats(args, 2)
	if !ok {
		return nil
	}
	if id, found := app.DetectEntity(v[0], v[1]); found {
		return js.ValueOf(float64(id))
	}
	return nil
}

func getDocumentJSON(this js.Value, args []js.Value) interface{} {
	data, err := app.DocumentJSON()
	if err != nil {
		return js.ValueOf("{}")
	}
	return js.ValueOf(string(data))
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(app.SelectionJSON())
}

func isMoving(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(app.IsMoving())
}

func isScaling(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(app.IsScaling())
}
