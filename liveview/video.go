package liveview

import (
	"fmt"
	"image/jpeg"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"golang.org/x/time/rate"
)

// Video streams frames as multipart MJPEG until the client hangs up or
// the subscription closes.  Each viewer gets its own single-slot
// subscription, so a slow client sees the newest frame and never a
// backlog.  MaxFPS, when nonzero, limits how fast frames are pushed;
// the camera may produce faster than a browser cares to render.
func (lv *LiveView) Video(w http.ResponseWriter, r *http.Request) {
	sub := lv.hub.Subscribe()
	defer lv.hub.Unsubscribe(sub.ID)

	var limiter *rate.Limiter
	if lv.MaxFPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(lv.MaxFPS), 1)
	}

	mw := multipart.NewWriter(w)
	defer mw.Close()
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mw.Boundary()))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	ctx := r.Context()
	for {
		fr := sub.Next()
		if fr == nil {
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
		if err != nil {
			log.Printf("liveview: video part, %v", err)
			return
		}
		if err := jpeg.Encode(part, fr.Gray16(), nil); err != nil {
			log.Printf("liveview: video encode, %v", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
