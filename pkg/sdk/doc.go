// Package plantclf is a Go client for the plant disease classification service.
//
//	client, _ := plantclf.New("http://localhost:8000")
//	pred, err := client.PredictFile(ctx, "leaf.jpg")
//	if errors.Is(err, plantclf.ErrInvalidFileFormat) {
//	    // only .png, .jpg and .jpeg uploads are accepted
//	}
//	fmt.Println(pred.Class, pred.Confidence)
//
// Non-2xx responses are returned as *APIError carrying the status code and the
// server's detail message.
package plantclf
