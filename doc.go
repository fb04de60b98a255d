/*
go-surgtile annotates surgical video by running a hosted object detection
model over overlapping tiles of each frame.

Hosted models are trained and served at a fixed input size, so small wound
and incision regions in a high resolution frame are often only half detected
when the whole frame is sent.  Slicing the frame into overlapping tiles,
sending each tile to the model concurrently, and merging the per tile results
back into frame coordinates recovers those regions at the cost of one remote
request per tile.

The packages are laid out as follows:

  - preprocess: tiling a frame into overlapping regions and encoding tiles
  - detector: the Detector capability and the hosted HTTP client
  - postprocess: detection types, coordinate remapping and duplicate merging
  - render: drawing detections, labels and contour outlines
  - segment: HSV colour segmentation of surgical scenes
  - video: frame sources, the annotated image sink and the result log

This package ties them together with a bounded worker Pool, the tile
Dispatcher and the frame Pipeline.

See the cmd/surgtile command for usage.
*/
package surgtile
