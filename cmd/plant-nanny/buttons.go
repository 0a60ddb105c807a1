package main

import (
	"context"
	"time"

	"github.com/sweeney/plant-nanny/internal/gpio"
	"github.com/sweeney/plant-nanny/internal/logger"
	"github.com/sweeney/plant-nanny/internal/logic"
)

// optionCycler advances the operator selection one option at a time.
type optionCycler interface {
	NextDelay() logic.Selection
	NextMoisture() logic.Selection
}

// buttonLoop polls the panel buttons until ctx is done. Button A moves to
// the next tab; button B advances the option on the current tab. It runs
// beside runLoop so presses still register during a watering cycle.
func buttonLoop(ctx context.Context, reader gpio.Reader, det *logic.ButtonDetector, sel optionCycler, now func() time.Time, tick <-chan time.Time) {
	tab := logic.TabDelay
	failing := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick:
			a, b, err := reader.Read()
			if err != nil {
				if !failing {
					logger.Error("button read failed", "err", err)
					failing = true
				}
				continue
			}
			if failing {
				logger.Info("button reads recovered")
				failing = false
			}

			for _, p := range det.Process(logic.ButtonInput{A: a, B: b, Time: now()}) {
				tab = applyPress(p, tab, sel)
			}
		}
	}
}

// applyPress acts on one press and returns the tab shown afterwards.
func applyPress(p logic.ButtonPress, tab logic.Tab, sel optionCycler) logic.Tab {
	switch p.Button {
	case logic.ButtonA:
		tab = tab.Next()
		logger.Info("panel tab", "tab", tab.String())
	case logic.ButtonB:
		switch tab {
		case logic.TabDelay:
			s := sel.NextDelay()
			logger.Info("delay selected from panel", "delay", s.Delay().String())
		case logic.TabWater:
			s := sel.NextMoisture()
			logger.Info("target selected from panel", "target", s.Target().String())
		}
	}
	return tab
}
