package gpu

// The kernels mirror the CPU reference implementations exactly: same log
// floor, same diff folding, same centered edge-truncated median windows.
// Parameter block layout and per-item indexing are part of the contract
// the parity tests in this package check.

// melWGSL computes one output value per (frame, mel) pair:
// log10(1e-12 + sum_k mag[frame][k] * filter[mel][k]).
const melWGSL = `
struct MelParams {
    n_bins: u32,
    n_mels: u32,
    n_frames: u32,
    _pad: u32,
}

@group(0) @binding(0) var<storage, read> magnitudes: array<f32>;
@group(0) @binding(1) var<storage, read> filters: array<f32>;
@group(0) @binding(2) var<uniform> params: MelParams;
@group(0) @binding(3) var<storage, read_write> out_values: array<f32>;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let frame = id.x;
    let mel = id.y;
    if (frame >= params.n_frames || mel >= params.n_mels) {
        return;
    }

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.n_bins; k = k + 1u) {
        sum = sum + magnitudes[frame * params.n_bins + k] * filters[mel * params.n_bins + k];
    }
    out_values[frame * params.n_mels + mel] = log(1e-12 + sum) / log(10.0);
}
`

// noveltyWGSL computes one output value per frame: the mean over mel bands
// of the frame-to-frame difference, rectified (diff_method 0) or absolute
// (diff_method 1). Frame 0 is always 0.
const noveltyWGSL = `
struct NoveltyParams {
    n_mels: u32,
    n_frames: u32,
    diff_method: u32,
    _pad: u32,
}

@group(0) @binding(0) var<storage, read> mel_values: array<f32>;
@group(0) @binding(1) var<uniform> params: NoveltyParams;
@group(0) @binding(2) var<storage, read_write> curve: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let frame = id.x;
    if (frame >= params.n_frames) {
        return;
    }
    if (frame == 0u) {
        curve[0] = 0.0;
        return;
    }

    var sum: f32 = 0.0;
    for (var m: u32 = 0u; m < params.n_mels; m = m + 1u) {
        var d = mel_values[frame * params.n_mels + m] - mel_values[(frame - 1u) * params.n_mels + m];
        if (params.diff_method == 1u) {
            d = abs(d);
        } else if (d < 0.0) {
            d = 0.0;
        }
        sum = sum + d;
    }
    curve[frame] = sum / f32(params.n_mels);
}
`

// hpssWGSL computes, per (frame, bin), the time-axis and frequency-axis
// medians with centered edge-truncated windows, then applies the soft
// (mask_mode 0) or hard (mask_mode 1) mask. Window lengths are capped at
// maxMedianWindow on the host side.
const hpssWGSL = `
struct HpssParams {
    n_frames: u32,
    n_bins: u32,
    harmonic_len: u32,
    percussive_len: u32,
    mask_mode: u32,
    _pad0: u32,
    _pad1: u32,
    _pad2: u32,
}

const MAX_WINDOW: u32 = 31u;

@group(0) @binding(0) var<storage, read> magnitudes: array<f32>;
@group(0) @binding(1) var<uniform> params: HpssParams;
@group(0) @binding(2) var<storage, read_write> harmonic: array<f32>;
@group(0) @binding(3) var<storage, read_write> percussive: array<f32>;

fn window_median(window: ptr<function, array<f32, MAX_WINDOW>>, count: u32) -> f32 {
    for (var i: u32 = 1u; i < count; i = i + 1u) {
        let v = (*window)[i];
        var j = i;
        loop {
            if (j == 0u || (*window)[j - 1u] <= v) {
                break;
            }
            (*window)[j] = (*window)[j - 1u];
            j = j - 1u;
        }
        (*window)[j] = v;
    }
    if (count % 2u == 1u) {
        return (*window)[count / 2u];
    }
    return 0.5 * ((*window)[count / 2u - 1u] + (*window)[count / 2u]);
}

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let frame = id.x;
    let bin = id.y;
    if (frame >= params.n_frames || bin >= params.n_bins) {
        return;
    }

    var window: array<f32, MAX_WINDOW>;

    let h_half = params.harmonic_len / 2u;
    var lo: u32 = 0u;
    if (frame > h_half) {
        lo = frame - h_half;
    }
    var hi = min(frame + h_half + 1u, params.n_frames);
    var count: u32 = 0u;
    for (var t = lo; t < hi; t = t + 1u) {
        window[count] = magnitudes[t * params.n_bins + bin];
        count = count + 1u;
    }
    let h = window_median(&window, count);

    let p_half = params.percussive_len / 2u;
    lo = 0u;
    if (bin > p_half) {
        lo = bin - p_half;
    }
    hi = min(bin + p_half + 1u, params.n_bins);
    count = 0u;
    for (var k = lo; k < hi; k = k + 1u) {
        window[count] = magnitudes[frame * params.n_bins + k];
        count = count + 1u;
    }
    let p = window_median(&window, count);

    let mag = magnitudes[frame * params.n_bins + bin];
    var h_gain: f32 = 0.0;
    if (params.mask_mode == 0u) {
        h_gain = h / (h + p + 1e-12);
    } else if (h >= p) {
        h_gain = 1.0;
    }
    harmonic[frame * params.n_bins + bin] = h_gain * mag;
    percussive[frame * params.n_bins + bin] = (1.0 - h_gain) * mag;
}
`
