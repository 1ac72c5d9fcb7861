// Package kernel holds the wire layout of the DRM structures the
// display exchanges with the kernel. Encoding is explicit so that the
// byte layout is tested in isolation from the ioctls that carry it.
package kernel
